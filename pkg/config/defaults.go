package config

const (
	defaultStorageDriver = "sqlite"

	defaultVectorProvider = "qdrant"
	defaultVectorHost     = "localhost"
	defaultVectorPort     = 6334

	defaultFaceSidecarURL = "http://localhost:8810"

	defaultEmbeddingTarget = "http://localhost:11434"
	defaultEmbeddingModel  = "all-minilm"

	defaultLLMProvider = "ollama"
	defaultLLMModel    = "llama3.2"

	defaultRecognitionThreshold = 0.8

	defaultAnalyzerIntervalSeconds = 30
	defaultAnalyzerBatchSize       = 5

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "solace.events"

	defaultAPIListen = ":8420"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values. Paths that depend
// on the resolved .solace/ directory (sqlite_path, face.image_dir) stay
// empty here and are filled in at startup.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
			Host:     defaultVectorHost,
			Port:     defaultVectorPort,
		},
		Face: FaceConfig{
			SidecarURL: defaultFaceSidecarURL,
		},
		Embedding: EmbeddingConfig{
			Target: defaultEmbeddingTarget,
			Model:  defaultEmbeddingModel,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Model:    defaultLLMModel,
		},
		Recognition: RecognitionConfig{
			Threshold: defaultRecognitionThreshold,
		},
		Analyzer: AnalyzerConfig{
			IntervalSeconds: defaultAnalyzerIntervalSeconds,
			BatchSize:       defaultAnalyzerBatchSize,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
