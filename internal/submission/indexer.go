package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
)

const DefaultSearchIndex = "nylta-submissions"

var ErrMissingOrderNumber = errors.New("order number is required")

// SearchDocument is one indexed client submission.
type SearchDocument struct {
	BatchID          string `json:"batchId"`
	OrderNumber      string `json:"orderNumber"`
	ParentFirmID     string `json:"parentFirmId"`
	FirmName         string `json:"firmName,omitempty"`
	SubmissionNumber string `json:"submissionNumber"`
	ClientID         string `json:"clientId"`
	ClientName       string `json:"clientName"`
	ContactID        string `json:"contactId,omitempty"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
	FilingType       string `json:"filingType,omitempty"`
	ServiceType      string `json:"serviceType,omitempty"`
	SubmittedAt      string `json:"submittedAt"`
}

// ResultIndexer writes submissions to Elasticsearch through the bulk API so
// the firm dashboard can search past orders.
type ResultIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewResultIndexer(client *elasticsearch.Client, index string) *ResultIndexer {
	if index == "" {
		index = DefaultSearchIndex
	}
	return &ResultIndexer{client: client, index: index}
}

func (r *ResultIndexer) Name() string { return "search-index" }

func (r *ResultIndexer) Documents(result *Result) []SearchDocument {
	docs := make([]SearchDocument, 0, len(result.Items))
	for i, item := range result.Items {
		doc := SearchDocument{
			BatchID:          result.Batch.ID,
			OrderNumber:      result.Batch.OrderNumber,
			ParentFirmID:     result.Batch.Firm.ParentFirmID,
			FirmName:         result.Batch.Firm.Name,
			SubmissionNumber: item.SubmissionNumber,
			ClientID:         item.ClientID,
			ClientName:       item.ClientName,
			ContactID:        item.ContactID,
			Status:           item.Status,
			Error:            item.Error,
			SubmittedAt:      result.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if i < len(result.Batch.Clients) {
			doc.FilingType = result.Batch.Clients[i].FilingType
			doc.ServiceType = result.Batch.Clients[i].ServiceType
		}
		docs = append(docs, doc)
	}
	return docs
}

func (r *ResultIndexer) Record(ctx context.Context, result *Result) error {
	if r.client == nil {
		return errors.New("search indexer has no client")
	}
	if result == nil || result.Batch == nil || len(result.Items) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, doc := range r.Documents(result) {
		// submission numbers are stable across retries, so a retry overwrites
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": r.index, "_id": doc.SubmissionNumber},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode bulk meta: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode bulk doc: %w", err)
		}
	}

	res, err := r.client.Bulk(
		bytes.NewReader(body.Bytes()),
		r.client.Bulk.WithContext(ctx),
		r.client.Bulk.WithIndex(r.index),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk index returned %s: %s", res.Status(), strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}

	var failures []string
	for _, item := range parsed.Items {
		for _, op := range item {
			if op.Error != nil {
				failures = append(failures, fmt.Sprintf("%s: %s", op.ID, op.Error.Reason))
			}
		}
	}
	return fmt.Errorf("bulk index rejected %d documents: %s", len(failures), strings.Join(failures, "; "))
}

// SearchOrder returns the indexed submissions of one order, sorted by
// submission number.
func (r *ResultIndexer) SearchOrder(ctx context.Context, orderNumber string) ([]SearchDocument, error) {
	if orderNumber == "" {
		return nil, ErrMissingOrderNumber
	}
	if r.client == nil {
		return nil, errors.New("search indexer has no client")
	}

	query := map[string]interface{}{
		"size": 500,
		"query": map[string]interface{}{
			"term": map[string]interface{}{"orderNumber.keyword": orderNumber},
		},
		"sort": []interface{}{
			map[string]interface{}{"submissionNumber.keyword": "asc"},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search submissions: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return []SearchDocument{}, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("search returned %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source SearchDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]SearchDocument, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}
