// Package discover crawls outward from the seed page, building the
// catalog of article URLs the later phases operate on.
package discover

// Frontier is the breadth-first work queue of the discovery crawl.
// A URL never enters the queue once it has been visited, and popping a
// URL marks it visited, so each page is fetched at most once per run.
type Frontier struct {
	queue   []string
	queued  map[string]bool
	visited map[string]bool
}

// NewFrontier builds a frontier from checkpointed state. Both slices
// may be nil for a fresh run.
func NewFrontier(queue, visited []string) *Frontier {
	f := &Frontier{
		queued:  make(map[string]bool, len(queue)),
		visited: make(map[string]bool, len(visited)),
	}
	for _, u := range visited {
		f.visited[u] = true
	}
	for _, u := range queue {
		f.Push(u)
	}
	return f
}

// Push enqueues a URL unless it was already visited or is already
// waiting in the queue.
func (f *Frontier) Push(url string) {
	if f.visited[url] || f.queued[url] {
		return
	}
	f.queued[url] = true
	f.queue = append(f.queue, url)
}

// Pop removes the oldest queued URL and marks it visited.
func (f *Frontier) Pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	url := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.queued, url)
	f.visited[url] = true
	return url, true
}

// Reseed forcibly enqueues a previously visited URL so a resumed run
// with an empty queue can re-derive outbound links from it.
func (f *Frontier) Reseed(url string) {
	delete(f.visited, url)
	f.Push(url)
}

// Len reports the number of queued URLs.
func (f *Frontier) Len() int { return len(f.queue) }

// VisitedCount reports the size of the visited set.
func (f *Frontier) VisitedCount() int { return len(f.visited) }

// Visited returns a snapshot of the visited set; order is unspecified.
func (f *Frontier) Visited() []string {
	out := make([]string, 0, len(f.visited))
	for u := range f.visited {
		out = append(out, u)
	}
	return out
}

// Pending returns up to cap queued URLs in order. The checkpoint
// persists only this bounded prefix, trading exact resumability for
// bounded checkpoint size.
func (f *Frontier) Pending(capN int) []string {
	n := len(f.queue)
	if capN >= 0 && n > capN {
		n = capN
	}
	out := make([]string, n)
	copy(out, f.queue[:n])
	return out
}
