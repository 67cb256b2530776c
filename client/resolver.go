package client

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/resolver"
)

// StaticScheme lets one worker address name several endpoints serving the
// same worker, e.g. "static:///10.0.0.1:7000,10.0.0.2:7000". Requests are
// spread over them round robin.
const StaticScheme = "static"

func init() {
	resolver.Register(&staticBuilder{})
}

type staticBuilder struct{}

func (b *staticBuilder) Build(target resolver.Target, cc resolver.ClientConn,
	opts resolver.BuildOptions) (resolver.Resolver, error,
) {
	var endpoints []string
	for _, ep := range strings.Split(target.Endpoint(), ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("static target %q has no endpoint", target.URL.String())
	}

	r := &staticResolver{
		endpoints: endpoints,
		cc:        cc,
	}
	r.ResolveNow(resolver.ResolveNowOptions{})
	return r, nil
}

func (b *staticBuilder) Scheme() string {
	return StaticScheme
}

type staticResolver struct {
	endpoints []string
	cc        resolver.ClientConn
}

func (r *staticResolver) ResolveNow(opts resolver.ResolveNowOptions) {
	addresses := make([]resolver.Address, 0, len(r.endpoints))
	for i, addr := range r.endpoints {
		addresses = append(addresses, resolver.Address{
			Addr:       addr,
			ServerName: fmt.Sprintf("worker-instance-%d", i+1),
		})
	}
	r.cc.UpdateState(resolver.State{Addresses: addresses})
}

func (r *staticResolver) Close() {}
