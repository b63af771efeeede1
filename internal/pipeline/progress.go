package pipeline

// Progress is emitted once per finished chunk. Chunk is the zero-based
// chunk index; Done counts chunks finished so far, which differs from
// Chunk+1 when chunks run concurrently.
type Progress struct {
	RunID   string  `json:"run_id,omitempty"`
	Chunk   int     `json:"chunk"`
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Records int     `json:"records"`
	Err     string  `json:"error,omitempty"`
}

// Observer receives progress events. It must not block for long.
type Observer func(Progress)

func percent(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done*1000/total) / 10
}
