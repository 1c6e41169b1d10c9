package ragdex

// Hit is one retrieved passage. Score is higher-is-better: cosine
// similarity, or negative Euclidean distance with WithL2.
type Hit struct {
	ID       string // "<document>#<seq>"
	Document string
	Seq      int
	Text     string
	Score    float32
}

// IngestResult reports an ingested document.
type IngestResult struct {
	Document string
	Chunks   int
	IDs      []string
}

// Answer is a generated answer and the passages it was built from.
type Answer struct {
	Text    string
	Sources []Hit
}

// DocumentInfo is one catalog entry.
type DocumentInfo struct {
	Name   string
	Chunks int
}

// Stats holds committed index counts.
type Stats struct {
	Documents  int
	Records    int
	Dimensions int
}

// ConsistencyReport is the outcome of Check.
type ConsistencyReport struct {
	Consistent     bool
	Documents      int
	Records        int
	CatalogChunks  int
	MissingRecords []string
	OrphanRecords  []string
	Misowned       []string
	// PersistedMatches is false when the snapshot on disk differs from the
	// loaded state.
	PersistedMatches bool
	PersistedDetail  string
}
