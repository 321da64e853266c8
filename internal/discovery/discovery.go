// Package discovery advertises the broker over DNS-SD and finds it again
// from peers on the same network.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	ServiceType = "_classroom-signal._tcp"
	Domain      = "local."

	// DefaultBrowseTimeout applies when the browse context has no deadline.
	DefaultBrowseTimeout = 5 * time.Second

	pathKey = "path"
)

var (
	ErrAlreadyStarted = errors.New("discovery: already advertising")
	ErrNotFound       = errors.New("discovery: no broker found")
)

// Server is a running DNS-SD registration.
type Server interface {
	Shutdown()
}

// ServerFactory registers services. Tests swap in a fake.
type ServerFactory interface {
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error)
}

type zeroconfServerFactory struct{}

func (zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Advertiser publishes the broker's WebSocket endpoint.
type Advertiser struct {
	factory ServerFactory
	log     *slog.Logger

	mu     sync.Mutex
	server Server
}

// NewAdvertiser uses zeroconf when factory is nil.
func NewAdvertiser(factory ServerFactory, log *slog.Logger) *Advertiser {
	if factory == nil {
		factory = zeroconfServerFactory{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Advertiser{factory: factory, log: log}
}

// Start advertises instance on port with the signaling path in TXT.
func (a *Advertiser) Start(instance string, port int, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyStarted
	}

	txt := []string{pathKey + "=" + path}
	server, err := a.factory.Register(instance, ServiceType, Domain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("discovery: register %s: %w", instance, err)
	}
	a.server = server
	a.log.Info("advertising broker", "instance", instance, "service", ServiceType, "port", port)
	return nil
}

func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.log.Info("stopped advertising broker")
}

// Resolver browses for services. Browse closes entries when it is done, as
// the zeroconf resolver does.
type Resolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func NewResolver() (Resolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: create resolver: %w", err)
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

// Service is a broker found on the network.
type Service struct {
	Instance string
	Host     string
	Port     int
	Path     string
}

// URL is the WebSocket address of the broker.
func (s Service) URL() string {
	return "ws://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + s.Path
}

// Browse returns the first broker that answers.
func Browse(ctx context.Context, resolver Resolver) (Service, error) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, DefaultBrowseTimeout)
	}
	// stops the resolver once we have an answer
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return Service{}, fmt.Errorf("discovery: browse: %w", err)
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return Service{}, ErrNotFound
			}
			if svc, ok := fromEntry(entry); ok {
				return svc, nil
			}
		case <-ctx.Done():
			return Service{}, ErrNotFound
		}
	}
}

func fromEntry(entry *zeroconf.ServiceEntry) (Service, bool) {
	if entry == nil || entry.Port == 0 {
		return Service{}, false
	}

	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		host = strings.TrimSuffix(entry.HostName, ".")
	default:
		return Service{}, false
	}

	path := "/ws"
	for _, kv := range entry.Text {
		if k, v, ok := strings.Cut(kv, "="); ok && k == pathKey && v != "" {
			path = v
		}
	}

	return Service{
		Instance: entry.Instance,
		Host:     host,
		Port:     entry.Port,
		Path:     path,
	}, true
}
