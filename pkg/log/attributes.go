package log

// Attribute keys shared by every log line of a training run. Keys are
// hierarchical ("data.samples") so runs can be filtered by prefix.
const (
	// RunIDKey identifies one invocation of the pipeline.
	RunIDKey = "run.id"

	// ModelNameKey identifies the estimator, e.g. "StandardScaler", "SMOTE", "ExoplanetCNN".
	ModelNameKey = "model.name"

	// OperationKey is one of the Operation* values below.
	OperationKey = "ml.operation"

	// ComponentKey names the package doing the work, e.g. "dataset", "nn".
	ComponentKey = "ml.component"

	// PhaseKey is one of the Phase* values below.
	PhaseKey = "ml.phase"

	// StageKey names the pipeline stage, e.g. "ingest", "scale".
	StageKey = "pipeline.stage"
)

// Data shape.
const (
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	BatchSizeKey = "data.batch_size"
	PathKey      = "data.path"

	// BoundaryKey is the train/test split boundary inside the concatenated table.
	BoundaryKey = "data.boundary"

	// MissingKey counts cells filled during cleaning.
	MissingKey = "data.missing"

	// ClassCountsKey holds per-class sample counts.
	ClassCountsKey = "data.class_counts"

	// SyntheticKey counts samples generated by oversampling.
	SyntheticKey = "data.synthetic"
)

// Training progress and metrics.
const (
	DurationMsKey  = "perf.duration_ms"
	EpochKey       = "training.epoch"
	EpochsKey      = "training.epochs"
	LossKey        = "metrics.loss"
	AccuracyKey    = "metrics.accuracy"
	ValLossKey     = "metrics.val_loss"
	ValAccuracyKey = "metrics.val_accuracy"
	AUCKey         = "metrics.auc"
)

// Hyperparameters.
const (
	LearningRateKey = "hyperparams.learning_rate"
	ClipValueKey    = "hyperparams.clip_value"
	KNeighborsKey   = "hyperparams.k_neighbors"
	RandomSeedKey   = "config.random_seed"
	OptimizerKey    = "hyperparams.optimizer"
	ParamsKey       = "model.params"
)

// Error context.
const (
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit         = "fit"
	OperationFitResample = "fit_resample"
	OperationEvaluate    = "evaluate"
	OperationSave        = "save"
	OperationLoad        = "load"

	PhaseIngestion     = "ingestion"
	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhasePersistence   = "persistence"
)
