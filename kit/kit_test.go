package kit

import (
	"context"
	"errors"
	"testing"
)

func TestChainOrder(t *testing.T) {
	var trace []string
	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				trace = append(trace, name)
				return next(ctx, req)
			}
		}
	}

	ep := Chain(mw("outer"), mw("middle"), mw("inner"))(func(ctx context.Context, req any) (any, error) {
		trace = append(trace, "endpoint")
		return "ok", nil
	})

	res, err := ep(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res != "ok" {
		t.Errorf("res = %v", res)
	}

	want := []string{"outer", "middle", "inner", "endpoint"}
	if len(trace) != len(want) {
		t.Fatalf("trace = %v", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Fatalf("trace = %v, want %v", trace, want)
		}
	}
}

func TestChainPropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	called := false
	mw := func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			called = true
			return next(ctx, req)
		}
	}

	ep := Chain(mw)(func(context.Context, any) (any, error) {
		return nil, sentinel
	})

	if _, err := ep(context.Background(), nil); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
	if !called {
		t.Error("middleware not invoked")
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	if got := GetRequestID(ctx); got != "" {
		t.Errorf("request id on empty ctx = %q", got)
	}
	if got := GetTransport(ctx); got != "mcp" {
		t.Errorf("default transport = %q", got)
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTransport(ctx, "http")
	ctx = WithJobID(ctx, "job-9")

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("request id = %q", got)
	}
	if got := GetTransport(ctx); got != "http" {
		t.Errorf("transport = %q", got)
	}
	if got := GetJobID(ctx); got != "job-9" {
		t.Errorf("job id = %q", got)
	}
}
