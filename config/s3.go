package config

import (
	"os"
	"time"
)

type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// StorageConfig selects the object store holding attachments of async checks.
type StorageConfig struct {
	Type      StorageType   `yaml:"type"`
	Retention time.Duration `yaml:"retention"`
	S3        S3Config      `yaml:"s3"`
	Minio     MinioConfig   `yaml:"minio"`
}

type S3Config struct {
	BucketName string `yaml:"bucket"`
	Region     string `yaml:"region"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
}

func (c *StorageConfig) applyEnv() {
	if v := StorageType(os.Getenv("STORAGE_TYPE")); v != "" {
		c.Type = v
	}
	setString(&c.S3.BucketName, "AWS_S3_BUCKET_NAME")
	setString(&c.S3.Region, "AWS_REGION")
	setString(&c.S3.Endpoint, "AWS_ENDPOINT")
	setString(&c.S3.AccessKey, "AWS_ACCESS_KEY")
	setString(&c.S3.SecretKey, "AWS_SECRET_KEY")
	c.Minio.applyEnv()
}
