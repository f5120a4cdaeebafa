package directory

import (
	"context"
	"testing"
	"time"
)

func TestCachedDirectory_GetServiceAndRepository(t *testing.T) {
	source := NewStaticDirectory(testFixture())
	cached := NewCachedDirectory(source, CachedDirectoryConfig{GroupName: "test-get-service-and-repository"})
	ctx := context.Background()

	svc, err := cached.GetService(ctx, "acme-catalog")
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if svc.ID != "acme-catalog" {
		t.Errorf("ID = %q, want acme-catalog", svc.ID)
	}

	repo, err := cached.GetRepository(ctx, "acme-search")
	if err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	if repo.ID != "acme-search" {
		t.Errorf("ID = %q, want acme-search", repo.ID)
	}
}

func TestCachedDirectory_WrongResourceType(t *testing.T) {
	source := NewStaticDirectory(testFixture())
	cached := NewCachedDirectory(source, CachedDirectoryConfig{GroupName: "test-wrong-resource-type"})
	ctx := context.Background()

	if _, err := cached.GetService(ctx, "acme-search"); err != ErrNotFound {
		t.Fatalf("GetService(repository key) error = %v, want ErrNotFound", err)
	}
	if _, err := cached.GetRepository(ctx, "acme-catalog"); err != ErrNotFound {
		t.Fatalf("GetRepository(service key) error = %v, want ErrNotFound", err)
	}
}

func TestCachedDirectory_ServesStaleUntilTTLExpires(t *testing.T) {
	source := NewStaticDirectory(testFixture())
	cached := NewCachedDirectory(source, CachedDirectoryConfig{
		GroupName: "test-ttl",
		TTL:       time.Hour,
	})
	ctx := context.Background()

	first, err := cached.GetService(ctx, "acme-catalog")
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}

	// Mutate the backing fixture directly; within the TTL bucket the cache
	// should still serve the previously resolved record.
	source.mu.Lock()
	source.services["acme-catalog"].Name = "Renamed"
	source.mu.Unlock()

	second, err := cached.GetService(ctx, "acme-catalog")
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if second.Name != first.Name {
		t.Fatalf("expected the cached record to stay stable within the TTL window, got %q then %q", first.Name, second.Name)
	}
}

func TestCachedDirectory_PassthroughMethods(t *testing.T) {
	source := NewStaticDirectory(testFixture())
	cached := NewCachedDirectory(source, CachedDirectoryConfig{GroupName: "test-passthrough"})
	ctx := context.Background()

	client, err := cached.Authenticate(ctx, "acme-catalog", "catalog-secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if client.ID != "acme-catalog" {
		t.Errorf("ID = %q, want acme-catalog", client.ID)
	}

	svc, err := cached.GetServiceByLocation(ctx, "https://catalog.acme.example")
	if err != nil {
		t.Fatalf("GetServiceByLocation: %v", err)
	}

	org, err := cached.GetParent(ctx, svc)
	if err != nil {
		t.Fatalf("GetParent: %v", err)
	}
	if org.ID != "acme" {
		t.Errorf("org.ID = %q, want acme", org.ID)
	}
}
