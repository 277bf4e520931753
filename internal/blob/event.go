package blob

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/znz-systems/mailbrief/internal/stage"
)

// ObjectCreated identifies a newly stored record.
type ObjectCreated struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type notification struct {
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// DecodeEvents extracts object-created entries from an S3 event
// notification. Keys arrive form-encoded and are unescaped here. Records for
// other event types are ignored.
func DecodeEvents(raw []byte) ([]ObjectCreated, error) {
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: decode storage event: %w", stage.ErrMalformedInput, err)
	}
	if n.Records == nil {
		return nil, fmt.Errorf("%w: storage event has no Records", stage.ErrMalformedInput)
	}

	events := make([]ObjectCreated, 0, len(n.Records))
	for _, rec := range n.Records {
		if rec.EventName != "" && !strings.HasPrefix(rec.EventName, "ObjectCreated:") {
			continue
		}
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: object key %q: %w", stage.ErrMalformedInput, rec.S3.Object.Key, err)
		}
		events = append(events, ObjectCreated{Bucket: rec.S3.Bucket.Name, Key: key})
	}
	return events, nil
}
