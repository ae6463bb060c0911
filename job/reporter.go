package job

// A Reporter is told the outcome of every URL message a Job downloads. It must be safe for concurrent use when the
// Manager runs jobs in parallel.
type Reporter interface {
	Start(path string)
	Skip(path string)
	Success(path string, attempts int)
	Failure(path string, err error, attempts int)
}

type nullReporter struct{}

func (nullReporter) Start(string) {}
func (nullReporter) Skip(string) {}
func (nullReporter) Success(string, int) {}
func (nullReporter) Failure(string, error, int) {}
