package factory

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Merdeus/dndinventory/internal/dependencies/mocks"
	"github.com/Merdeus/dndinventory/internal/metrics"
	"github.com/Merdeus/dndinventory/internal/services/inventory"
	"github.com/Merdeus/dndinventory/internal/services/tokens"
	"github.com/Merdeus/dndinventory/internal/storage/memory"
)

// TestTokenSecret keys the codec of every TestApp
const TestTokenSecret = "test-app-secret"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Bcrypt runs at minimum cost and metrics use a private registry.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	codec, err := tokens.New([]byte(TestTokenSecret), 0)
	if err != nil {
		panic(err)
	}

	app := newWithDependencies(store, mockClock, mockRandom, codec, metrics.New(),
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Config{InventoryConfig: inventory.Config{BcryptCost: bcrypt.MinCost}})

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}
