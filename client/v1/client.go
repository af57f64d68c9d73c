// Package v1 is an HTTP client for the payroll hierarchy API.
package v1

type PayrollClient struct {
	Transport *Transport
	Hierarchy *HierarchyEndpoint
}

// NewPayrollClient initializes the API client
func NewPayrollClient(baseURL string, token string) *PayrollClient {
	t := NewTransport(baseURL, token)
	return &PayrollClient{
		Transport: t,
		Hierarchy: &HierarchyEndpoint{transport: t},
	}
}
