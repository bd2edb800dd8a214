package stream

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/websocket"
	"github.com/patrickmn/go-cache"

	"github.com/BBerastegui/domain-stream/internal/config"
	"github.com/BBerastegui/domain-stream/internal/models"
	"github.com/BBerastegui/domain-stream/internal/permute"
)

const (
	pingInterval   = 30 * time.Second
	dialTimeout    = 15 * time.Second
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second

	// Re-issued certificates repeat domains constantly; skip anything
	// expanded within the last window.
	seenTTL   = 30 * time.Minute
	seenPurge = time.Hour
)

type connState int

const (
	stateDisconnected connState = iota
	stateReconnecting
	stateConnected
)

func (s connState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Listener subscribes to the certificate-transparency feed and feeds
// candidate names derived from each certificate into the shared queue.
// It holds the websocket open for the process lifetime, reconnecting
// with bounded backoff whenever the feed drops.
type Listener struct {
	url         string
	skipIssuers []string
	patterns    []string
	seen        *cache.Cache
	out         chan<- models.Candidate

	state   connState
	backoff time.Duration
}

// NewListener builds a Listener emitting candidates on out.
func NewListener(cfg *config.Config, out chan<- models.Candidate) *Listener {
	return &Listener{
		url:         cfg.StreamURL,
		skipIssuers: cfg.SkipIssuers,
		patterns:    cfg.Patterns,
		seen:        cache.New(seenTTL, seenPurge),
		out:         out,
		state:       stateDisconnected,
		backoff:     initialBackoff,
	}
}

// Run drives the connect/consume/reconnect loop until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	for ctx.Err() == nil {
		conn, err := l.dial(ctx)
		if err != nil {
			l.state = stateReconnecting
			log.Printf("stream: %s: connect %s: %v (retrying in %s)", l.state, l.url, err, l.backoff)
			l.sleep(ctx)
			continue
		}

		l.state = stateConnected
		l.resetBackoff()
		log.Printf("stream: %s to %s, waiting for events", l.state, l.url)

		err = l.consume(ctx, conn)
		conn.Close()
		l.state = stateDisconnected
		if ctx.Err() != nil {
			return
		}
		log.Printf("stream: %s: %v (reconnecting in %s)", l.state, err, l.backoff)
		l.sleep(ctx)
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, l.url, nil)
	return conn, err
}

// consume reads messages until the connection breaks or ctx is cancelled.
// The pinger goroutine is the connection's only writer.
func (l *Listener) consume(ctx context.Context, conn *websocket.Conn) error {
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ctx.Done():
				conn.Close() // unblocks ReadMessage
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := l.process(ctx, msg); err != nil {
			return err
		}
	}
}

// process parses one feed message and enqueues candidates for every
// distinct, not recently seen domain it names.
func (l *Listener) process(ctx context.Context, msg []byte) error {
	var update models.CertUpdate
	if err := json.Unmarshal(msg, &update); err != nil {
		log.Printf("stream: bad message: %v", err)
		return nil
	}
	if update.MessageType != "certificate_update" {
		return nil
	}
	if l.skipped(update.Issuer()) {
		return nil
	}

	// Certificates repeat names across SANs; dedupe within the message
	// before consulting the global seen cache.
	distinct := mapset.NewSet[string]()
	for _, domain := range update.Data.LeafCert.AllDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		domain = strings.TrimPrefix(domain, "*.")
		if domain == "" {
			continue
		}
		distinct.Add(domain)
	}

	for _, domain := range distinct.ToSlice() {
		if l.seen.Add(domain, struct{}{}, cache.DefaultExpiration) != nil {
			continue // seen recently
		}
		for _, name := range permute.Permutations(domain, l.patterns) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case l.out <- models.Candidate{Name: name, Origin: domain}:
			}
		}
	}
	return nil
}

func (l *Listener) skipped(issuer string) bool {
	for _, s := range l.skipIssuers {
		if s != "" && strings.Contains(issuer, s) {
			return true
		}
	}
	return false
}

// sleep waits for the current backoff (with jitter) before the next
// connection attempt.
func (l *Listener) sleep(ctx context.Context) {
	jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
	t := time.NewTimer(l.nextBackoff() + jitter)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// nextBackoff returns the current backoff and doubles it up to the cap.
func (l *Listener) nextBackoff() time.Duration {
	d := l.backoff
	if l.backoff < maxBackoff {
		l.backoff *= 2
		if l.backoff > maxBackoff {
			l.backoff = maxBackoff
		}
	}
	return d
}

// resetBackoff restores the initial backoff after a successful connect.
func (l *Listener) resetBackoff() {
	l.backoff = initialBackoff
}
