package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.SessionDBPath == "" {
		cfg.Storage.SessionDBPath = "/usr/local/var/kotae/data/db/sessions.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/kotae/data/indices/chunks.idx"
	}
	if cfg.Storage.CacheSnapshotPath == "" {
		cfg.Storage.CacheSnapshotPath = "/usr/local/var/kotae/data/cache/answers.json"
	}
	if cfg.Storage.FAQPath == "" {
		cfg.Storage.FAQPath = "/usr/local/etc/kotae/faq.json"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/kotae/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Retrieval.ConfidenceThreshold == 0 {
		// Cosine similarity. Tune against the embedding model in use.
		cfg.Retrieval.ConfidenceThreshold = 0.875
	}
	if cfg.Retrieval.ConfidentKeep == 0 {
		cfg.Retrieval.ConfidentKeep = 2
	}
	if cfg.Retrieval.RerankKeep == 0 {
		cfg.Retrieval.RerankKeep = 3
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 1200
	}
	if cfg.Rerank.Model == "" {
		cfg.Rerank.Model = "ms-marco-MiniLM-L-12-v2"
	}
	if cfg.Cache.TTLHours == 0 {
		cfg.Cache.TTLHours = 168 // 7 days
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 5000
	}
	if cfg.Cache.FuzzyThreshold == 0 {
		cfg.Cache.FuzzyThreshold = 0.5
	}
	if cfg.Cache.PersistEvery == 0 {
		cfg.Cache.PersistEvery = 10
	}
	if cfg.Providers.Accelerator.Model == "" {
		cfg.Providers.Accelerator.Model = "llama-3.1-8b-instant"
	}
	if cfg.Providers.Cloud.Endpoint == "" {
		cfg.Providers.Cloud.Endpoint = "https://generativelanguage.googleapis.com"
	}
	if cfg.Providers.Cloud.Model == "" {
		cfg.Providers.Cloud.Model = "gemini-2.0-flash"
	}
	if cfg.Providers.Local.Endpoint == "" {
		cfg.Providers.Local.Endpoint = "http://localhost:11434"
	}
	if cfg.Providers.Local.Model == "" {
		cfg.Providers.Local.Model = "llama3.1:8b"
	}
	if cfg.Stream.BufferSize == 0 {
		cfg.Stream.BufferSize = 32
	}
	if cfg.Stream.WorkerTimeoutSeconds == 0 {
		cfg.Stream.WorkerTimeoutSeconds = 120
	}
}
