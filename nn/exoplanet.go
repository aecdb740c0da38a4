package nn

// ExoplanetCNNName is the model name of ExoplanetCNN.
const ExoplanetCNNName = "exoplanet_cnn"

// ExoplanetCNN builds the light-curve classifier for sequences of length steps:
//
//	Conv1D(32, 5, same, relu) -> BatchNorm -> MaxPool1D(2)
//	Conv1D(64, 5, same, relu) -> BatchNorm -> MaxPool1D(2)
//	Flatten -> Dense(64, relu) -> Dropout(0.5) -> Dense(1, sigmoid)
func ExoplanetCNN(length int, seed int64) (*Sequential, error) {
	return NewSequential(ExoplanetCNNName, []int{length, 1}, seed,
		NewConv1D(32, 5, "same", ReLU),
		NewBatchNorm(),
		NewMaxPool1D(2),
		NewConv1D(64, 5, "same", ReLU),
		NewBatchNorm(),
		NewMaxPool1D(2),
		NewFlatten(),
		NewDense(64, ReLU),
		NewDropout(0.5),
		NewDense(1, Sigmoid),
	)
}
