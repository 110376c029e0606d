package types

import "testing"

func TestParseVMEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		want    VMEndpoint
		wantErr bool
	}{
		{"localhost:2800", VMEndpoint{Host: "localhost", Port: 2800}, false},
		{"[::1]:9000", VMEndpoint{Host: "::1", Port: 9000}, false},
		{"localhost", VMEndpoint{}, true},
		{"localhost:abc", VMEndpoint{}, true},
		{"localhost:0", VMEndpoint{}, true},
		{":2800", VMEndpoint{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVMEndpoint(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVMEndpoint error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseVMEndpoint = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestVMEndpoint_Addr(t *testing.T) {
	if got := (VMEndpoint{Host: "::1", Port: 1}).Addr(); got != "[::1]:1" {
		t.Errorf("Addr = %q", got)
	}
}

func TestVMPool_Validate(t *testing.T) {
	ttl := int64(0)
	ok := []VMEndpoint{{Host: "a", Port: 1}}

	tests := []struct {
		name    string
		pool    VMPool
		wantErr bool
	}{
		{"valid", VMPool{Name: "p", Strategy: VMStrategyRoundRobin, Endpoints: ok}, false},
		{"no name", VMPool{Strategy: VMStrategyRandom, Endpoints: ok}, true},
		{"bad strategy", VMPool{Name: "p", Strategy: "fastest", Endpoints: ok}, true},
		{"no endpoints", VMPool{Name: "p", Strategy: VMStrategyRandom}, true},
		{"bad endpoint", VMPool{Name: "p", Strategy: VMStrategyRandom, Endpoints: []VMEndpoint{{Host: "a"}}}, true},
		{"zero ttl", VMPool{Name: "p", Strategy: VMStrategySticky, Endpoints: ok, Sticky: &VMSticky{TTLMs: &ttl}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pool.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVMPool_Warnings(t *testing.T) {
	endpoints := make([]VMEndpoint, LargePoolThreshold+1)
	for i := range endpoints {
		endpoints[i] = VMEndpoint{Host: "vm.local", Port: 2800 + i}
	}
	large := &VMPool{Name: "large", Strategy: VMStrategyRoundRobin, Endpoints: endpoints}
	if len(large.Warnings()) != 1 {
		t.Errorf("expected 1 warning for large round_robin pool, got %v", large.Warnings())
	}

	stray := &VMPool{Name: "p", Strategy: VMStrategyRandom, Endpoints: endpoints[:1], Sticky: &VMSticky{}}
	if len(stray.Warnings()) != 1 {
		t.Errorf("expected 1 warning for sticky options on random pool, got %v", stray.Warnings())
	}
}
