package trial

// Batch is a group of trials started together and joined before the next
// batch begins.
type Batch struct {
	Start int // index of the first trial
	Size  int
}

// Plan splits n trials into consecutive batches of at most width trials.
// Plan(10, 3) yields sizes [3 3 3 1]; Plan(0, w) yields no batches.
func Plan(n, width int) []Batch {
	if n <= 0 || width < 1 {
		return nil
	}
	batches := make([]Batch, 0, (n+width-1)/width)
	for start := 0; start < n; start += width {
		batches = append(batches, Batch{Start: start, Size: min(width, n-start)})
	}
	return batches
}
