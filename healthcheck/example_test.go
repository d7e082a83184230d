/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package healthcheck_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/acronis/go-botkit/healthcheck"
)

func Example() {
	checks := map[string]healthcheck.Check{
		"source": healthcheck.SourceCheck(func() int { return 2 }),
	}
	handler := healthcheck.NewHandler(checks)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	fmt.Println(resp.Code)
	fmt.Println(resp.Body.String())

	// Output:
	// 200
	// {"healthy":true,"components":{"source":{"healthy":true,"details":{"entries":2}}}}
}
