package queue

// Song is an immutable queue entry.
type Song struct {
	Title string
	URL   string
}
