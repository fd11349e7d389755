/*
Package docsdk is a client for the docgate document service. It covers the
admin surface (upload, archive, delete, deliver) authenticated with an admin
API key, and the customer download flow authenticated with an access token
and download password.

	admin := docsdk.NewClient("https://docs.example.com", docsdk.WithAdminKey(key))

	doc, err := admin.Upload(ctx, "invoice-2026-001", "invoice.pdf", "application/pdf", file)
	delivery, err := admin.Deliver(ctx, doc.ID, docsdk.DeliverRequest{})

	// hand delivery.Token and delivery.Password to the customer, then:
	customer := docsdk.NewClient("https://docs.example.com")
	dl, err := customer.Download(ctx, delivery.Token, delivery.Password)

# Errors

Every non-2xx response is returned as *APIError carrying the HTTP status,
the machine-readable code from the {error, error_description} body and, for
429 responses, the Retry-After delay.

	var apiErr *docsdk.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		time.Sleep(apiErr.RetryAfter)
	}
*/
package docsdk
