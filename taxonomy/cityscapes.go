package taxonomy

// cityscapesLabels returns a fresh copy of the Cityscapes label table.
func cityscapesLabels() []Label {
	return []Label{
		{Name: "unlabeled", ID: 0, TrainID: 255, Category: "void", CategoryID: 0, HasInstances: false, IgnoreInEval: true},
		{Name: "ego vehicle", ID: 1, TrainID: 255, Category: "void", CategoryID: 0, HasInstances: false, IgnoreInEval: true},
		{Name: "rectification border", ID: 2, TrainID: 255, Category: "void", CategoryID: 0, HasInstances: false, IgnoreInEval: true},
		{Name: "out of roi", ID: 3, TrainID: 255, Category: "void", CategoryID: 0, HasInstances: false, IgnoreInEval: true},
		{Name: "static", ID: 4, TrainID: 255, Category: "void", CategoryID: 0, HasInstances: false, IgnoreInEval: true},
		{Name: "dynamic", ID: 5, TrainID: 255, Category: "void", CategoryID: 0, HasInstances: false, IgnoreInEval: true},
		{Name: "ground", ID: 6, TrainID: 255, Category: "void", CategoryID: 0, HasInstances: false, IgnoreInEval: true},
		{Name: "road", ID: 7, TrainID: 0, Category: "flat", CategoryID: 1, HasInstances: false, IgnoreInEval: false},
		{Name: "sidewalk", ID: 8, TrainID: 1, Category: "flat", CategoryID: 1, HasInstances: false, IgnoreInEval: false},
		{Name: "parking", ID: 9, TrainID: 255, Category: "flat", CategoryID: 1, HasInstances: false, IgnoreInEval: true},
		{Name: "rail track", ID: 10, TrainID: 255, Category: "flat", CategoryID: 1, HasInstances: false, IgnoreInEval: true},
		{Name: "building", ID: 11, TrainID: 2, Category: "construction", CategoryID: 2, HasInstances: false, IgnoreInEval: false},
		{Name: "wall", ID: 12, TrainID: 3, Category: "construction", CategoryID: 2, HasInstances: false, IgnoreInEval: false},
		{Name: "fence", ID: 13, TrainID: 4, Category: "construction", CategoryID: 2, HasInstances: false, IgnoreInEval: false},
		{Name: "guard rail", ID: 14, TrainID: 255, Category: "construction", CategoryID: 2, HasInstances: false, IgnoreInEval: true},
		{Name: "bridge", ID: 15, TrainID: 255, Category: "construction", CategoryID: 2, HasInstances: false, IgnoreInEval: true},
		{Name: "tunnel", ID: 16, TrainID: 255, Category: "construction", CategoryID: 2, HasInstances: false, IgnoreInEval: true},
		{Name: "pole", ID: 17, TrainID: 5, Category: "object", CategoryID: 3, HasInstances: false, IgnoreInEval: false},
		{Name: "polegroup", ID: 18, TrainID: 255, Category: "object", CategoryID: 3, HasInstances: false, IgnoreInEval: true},
		{Name: "traffic light", ID: 19, TrainID: 6, Category: "object", CategoryID: 3, HasInstances: false, IgnoreInEval: false},
		{Name: "traffic sign", ID: 20, TrainID: 7, Category: "object", CategoryID: 3, HasInstances: false, IgnoreInEval: false},
		{Name: "vegetation", ID: 21, TrainID: 8, Category: "nature", CategoryID: 4, HasInstances: false, IgnoreInEval: false},
		{Name: "terrain", ID: 22, TrainID: 9, Category: "nature", CategoryID: 4, HasInstances: false, IgnoreInEval: false},
		{Name: "sky", ID: 23, TrainID: 10, Category: "sky", CategoryID: 5, HasInstances: false, IgnoreInEval: false},
		{Name: "person", ID: 24, TrainID: 11, Category: "human", CategoryID: 6, HasInstances: true, IgnoreInEval: false},
		{Name: "rider", ID: 25, TrainID: 12, Category: "human", CategoryID: 6, HasInstances: true, IgnoreInEval: false},
		{Name: "car", ID: 26, TrainID: 13, Category: "vehicle", CategoryID: 7, HasInstances: true, IgnoreInEval: false},
		{Name: "truck", ID: 27, TrainID: 14, Category: "vehicle", CategoryID: 7, HasInstances: true, IgnoreInEval: false},
		{Name: "bus", ID: 28, TrainID: 15, Category: "vehicle", CategoryID: 7, HasInstances: true, IgnoreInEval: false},
		{Name: "caravan", ID: 29, TrainID: 255, Category: "vehicle", CategoryID: 7, HasInstances: true, IgnoreInEval: true},
		{Name: "trailer", ID: 30, TrainID: 255, Category: "vehicle", CategoryID: 7, HasInstances: true, IgnoreInEval: true},
		{Name: "train", ID: 31, TrainID: 16, Category: "vehicle", CategoryID: 7, HasInstances: true, IgnoreInEval: false},
		{Name: "motorcycle", ID: 32, TrainID: 17, Category: "vehicle", CategoryID: 7, HasInstances: true, IgnoreInEval: false},
		{Name: "bicycle", ID: 33, TrainID: 18, Category: "vehicle", CategoryID: 7, HasInstances: true, IgnoreInEval: false},
		{Name: "license plate", ID: -1, TrainID: -1, Category: "vehicle", CategoryID: 7, HasInstances: false, IgnoreInEval: true},
	}
}

// cityscapesAvgClassSize returns the average pixel area of one instance per
// Cityscapes instance class, measured on the training set.
func cityscapesAvgClassSize() map[string]float64 {
	return map[string]float64{
		"bicycle":    4672.3249222261,
		"caravan":    36771.8241758242,
		"motorcycle": 6298.7200839748,
		"rider":      3930.4788056518,
		"bus":        35732.1511111111,
		"train":      67583.7075812274,
		"car":        12794.0202738185,
		"person":     3462.4756337644,
		"truck":      27855.1264367816,
		"trailer":    16926.9763313609,
	}
}

// Cityscapes returns the Cityscapes taxonomy.
//
// Returns:
//   - *Taxonomy: A new taxonomy sharing no state with other calls.
func Cityscapes() *Taxonomy {
	t, err := New(cityscapesLabels(), cityscapesAvgClassSize())
	if err != nil {
		panic(err)
	}
	return t
}
