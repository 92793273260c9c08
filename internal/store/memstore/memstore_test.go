package memstore

import (
	"testing"

	"github.com/anidao/anidao/internal/store"
	"github.com/anidao/anidao/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}
