package capture

import "sync"

// Session is one negotiated OS capture session for a monitor.
// Capture produces a shared NT handle to the current frame plus its
// extent, and a release function the importer calls once the handle
// has been imported.
type Session interface {
	Capture() (handle uintptr, width, height uint32, release func(), err error)
	Close()
}

// Provider is the OS capture API: resolve the monitor under the
// cursor, open a capture session against it.
type Provider interface {
	ResolveActiveMonitor() (MonitorInfo, error)
	OpenSession(MonitorInfo) (Session, error)
}

// Cache keeps one open capture session per monitor handle so repeated
// captures of the same monitor skip the capture-API negotiation.
// Invalidated when monitor resolution fails (the topology changed).
type Cache struct {
	mu       sync.Mutex
	sessions map[uintptr]Session
}

// NewCache returns an empty session cache.
func NewCache() *Cache {
	return &Cache{sessions: make(map[uintptr]Session)}
}

// Session returns the cached session for the monitor, opening one
// through the provider on a miss.
func (c *Cache) Session(provider Provider, mon MonitorInfo) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[mon.Handle]; ok {
		return s, nil
	}
	s, err := provider.OpenSession(mon)
	if err != nil {
		return nil, err
	}
	c.sessions[mon.Handle] = s
	return s, nil
}

// Invalidate closes and drops every cached session; called when the
// monitor topology changes under us.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for handle, s := range c.sessions {
		s.Close()
		delete(c.sessions, handle)
	}
}

// Close releases all sessions during shutdown.
func (c *Cache) Close() {
	c.Invalidate()
}
