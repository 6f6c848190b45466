// Package httpclient builds the consumer's HTTP client and batch requests.
//
// [NewRequestBuilder] derives the target from the consumer configuration,
// falling back to the server address, and attaches the configured headers:
//
//	builder, err := httpclient.NewRequestBuilder(cfg)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx)
//
// [NewClient] returns a client with a per-request timeout and a transport
// tuned for keeping one connection to the replay server warm:
//
//	client := httpclient.NewClient(10 * time.Second)
//	resp, err := client.Do(req)
package httpclient
