package database

// Run status values.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID          int64
	StartedAt   string
	FinishedAt  *string
	Status      string
	Pages       int
	RecordCount int
	Summary     *string
}

// PageToken is the last pagination token seen for a category in a run.
type PageToken struct {
	RunID    int64
	Category string
	Token    string
	Pages    int
}

// Report is the composed markdown for a run.
type Report struct {
	RunID        int64
	BodyMarkdown string
	GeneratedAt  *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Runs           int
	SuccessfulRuns int
	Events         int
	Categories     int
	ImagesSaved    int
	Reports        int
}
