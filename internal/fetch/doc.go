// Package fetch is the HTTP transport of the harvesting engines.
//
// A Client issues GET and form-encoded POST requests, keeps cookies for
// the lifetime of the client, and retries transient failures (network
// errors, 429, 5xx) with bounded exponential backoff. A request that still
// fails returns a *TransportError naming the URL.
//
// # Usage
//
//	client, err := fetch.NewClient(fetch.WithRetries(3), fetch.WithTimeout(time.Minute))
//	page, err := client.Get(ctx, "https://example.gov/results.html")
//	page, err = client.PostForm(ctx, listURL, state.Form(target))
package fetch
