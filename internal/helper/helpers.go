package helper

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
)

type HelperRepository struct {
	baseUrl    *string
	WG         *sync.WaitGroup
	errHandler *errHandler.ErrorRepository
}

func New(baseUrl *string, wg *sync.WaitGroup, errHandler *errHandler.ErrorRepository) *HelperRepository {
	return &HelperRepository{
		baseUrl:    baseUrl,
		WG:         wg,
		errHandler: errHandler,
	}
}

func (h *HelperRepository) NewEmailData() map[string]any {
	data := map[string]any{
		"BaseURL": *h.baseUrl,
	}

	return data
}

// BackgroundTask runs fn on its own goroutine, recovering panics and routing
// errors through the error reporter so a flaky side effect (email, CRM push)
// never takes a request down with it.
func (h *HelperRepository) BackgroundTask(r *http.Request, fn func() error) {
	h.WG.Add(1)

	go func() {
		defer h.WG.Done()

		defer func() {
			err := recover()
			if err != nil {
				h.errHandler.ReportServerError(r, fmt.Errorf("%s", err))
			}
		}()

		err := fn()
		if err != nil {
			h.errHandler.ReportServerError(r, err)
		}
	}()
}
