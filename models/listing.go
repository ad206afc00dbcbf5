package models

// Listing is one raw apartment record as produced by a data source.
// Address is the natural key but is not guaranteed to be unique.
type Listing struct {
	Address          string
	Area             float64
	ConstructionYear int
	Rooms            int
	Bedrooms         int
	Bathrooms        float64
	Balcony          string
	Storage          string
	Parking          string
	Furnished        string
	Garage           string
	Garden           string
	Energy           string
	Facilities       string
	Zip              string
	Neighborhood     string
	Rent             int
}

// FeatureTable is the numeric, model-ready form of a listing table.
// Rows[i][j] is the value of Columns[j] for listing i.
type FeatureTable struct {
	Columns []string
	Rows    [][]float64
}

// Index returns the position of the named column, or -1.
func (t *FeatureTable) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int {
	return len(t.Rows)
}

// Dataset is a feature table separated into aligned train/test partitions.
type Dataset struct {
	FeatureNames []string
	Target       string

	XTrain [][]float64
	YTrain []float64
	XTest  [][]float64
	YTest  []float64

	// TrainIndex and TestIndex are the source row positions of each partition.
	TrainIndex []int
	TestIndex  []int
}

// Summary holds descriptive statistics over a listing table.
type Summary struct {
	TotalListings  int
	AverageRent    float64
	MinRent        int
	MaxRent        int
	AverageArea    float64
	MostExpensive  *Listing
	ByNeighborhood map[string]int
}
