package config

import "sentimentai/pkg/classifier"

// ModelSource returns the artifact source selected by cfg: the MinIO bucket
// when one is configured, otherwise the local model directory.
func ModelSource(cfg FileConfig) (classifier.ArtifactSource, error) {
	if cfg.Minio.Enabled() {
		src, err := classifier.NewMinioSource(classifier.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return classifier.NewDirSource(cfg.ModelDir), nil
}
