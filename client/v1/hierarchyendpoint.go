package v1

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"axiapac.com/payroll/model"
)

const apiBase = "/api/v1.0"

// HierarchyEndpoint talks to the hierarchy routes. It satisfies
// engine.Remote so an engine can run against a remote server.
type HierarchyEndpoint struct {
	transport *Transport
}

func nodePath(key model.Key) string {
	return fmt.Sprintf("%s/hierarchy/%s/%s", apiBase, key.Level, key.ID)
}

func (ep *HierarchyEndpoint) FetchChildren(ctx context.Context, parent model.Key) ([]model.Node, error) {
	childLevel, ok := parent.Level.Child()
	if !ok {
		return []model.Node{}, nil
	}
	path := apiBase + "/timesheets"
	if parent != model.RootKey {
		path = nodePath(parent) + "/children"
	}

	resp, err := ep.transport.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	raw, err := resp.data()
	if err != nil {
		return nil, err
	}
	return model.DecodeList(childLevel, raw)
}

func (ep *HierarchyEndpoint) ProbeHasChildren(ctx context.Context, key model.Key) (bool, error) {
	resp, err := ep.transport.Get(ctx, nodePath(key)+"/has-children", nil)
	if err != nil {
		return false, err
	}
	raw, err := resp.data()
	if err != nil {
		return false, err
	}
	var out struct {
		HasChildren bool `json:"hasChildren"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, err
	}
	return out.HasChildren, nil
}

func (ep *HierarchyEndpoint) Get(ctx context.Context, key model.Key) (model.Node, error) {
	resp, err := ep.transport.Get(ctx, nodePath(key), nil)
	if err != nil {
		return nil, err
	}
	raw, err := resp.data()
	if err != nil {
		return nil, err
	}
	return model.Decode(key.Level, raw)
}

func (ep *HierarchyEndpoint) CreateEntity(ctx context.Context, draft model.Node) (*model.MutationResult, error) {
	resp, err := ep.transport.Post(ctx, fmt.Sprintf("%s/hierarchy/%s", apiBase, draft.Key().Level), draft, nil)
	if err != nil {
		return nil, err
	}
	return mutationResult(resp)
}

func (ep *HierarchyEndpoint) UpdateEntity(ctx context.Context, key model.Key, patch model.Patch) (*model.MutationResult, error) {
	resp, err := ep.transport.Patch(ctx, nodePath(key), patch)
	if err != nil {
		return nil, err
	}
	return mutationResult(resp)
}

func (ep *HierarchyEndpoint) DeleteEntity(ctx context.Context, key model.Key) (*model.MutationResult, error) {
	resp, err := ep.transport.Delete(ctx, nodePath(key))
	if err != nil {
		return nil, err
	}
	return mutationResult(resp)
}

func mutationResult(resp *Response) (*model.MutationResult, error) {
	raw, err := resp.data()
	if err != nil {
		return nil, err
	}
	var res model.MutationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type SearchQuery struct {
	StartDate   string   `json:"startDate,omitempty"` // yyyy-MM-dd
	EndDate     string   `json:"endDate,omitempty"`
	PayPeriods  []string `json:"payPeriods,omitempty"`
	Detachments []string `json:"detachments,omitempty"`
	Shifts      []string `json:"shifts,omitempty"`
}

type SearchResult struct {
	Data       []model.Timesheet `json:"data"`
	Pagination struct {
		Total  int64 `json:"total"`
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
	} `json:"pagination"`
	Counts struct {
		Total                 int64 `json:"total"`
		WithOvertime          int64 `json:"withOvertime"`
		WithNightDifferential int64 `json:"withNightDifferential"`
	} `json:"counts"`
}

func (ep *HierarchyEndpoint) Search(ctx context.Context, q SearchQuery, limit, offset int) (*SearchResult, error) {
	query := map[string]string{"offset": strconv.Itoa(offset)}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	resp, err := ep.transport.Post(ctx, apiBase+"/timesheets/search", q, query)
	if err != nil {
		return nil, err
	}
	var result SearchResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Event is one message from the change stream.
type Event struct {
	Type string
	Data json.RawMessage
}

// Watch streams change events to fn until ctx is cancelled or the server
// closes the stream.
func (ep *HierarchyEndpoint) Watch(ctx context.Context, fn func(Event)) error {
	t := ep.transport
	req, err := t.newRequest(ctx, http.MethodGet, apiBase+"/events", nil, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError(http.MethodGet, apiBase+"/events", resp.StatusCode, nil)
	}

	var ev Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.Type != "" {
				fn(ev)
			}
			ev = Event{}
		case strings.HasPrefix(line, "event:"):
			ev.Type = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.Data = json.RawMessage(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
