package catalog

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/grovetools/appshelf/pkg/docstore"
	"github.com/grovetools/appshelf/pkg/models"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var timeType = reflect.TypeOf(time.Time{})

// timestampHook converts the representations a store timestamp can take
// after a round trip (native, JSON object, RFC 3339 string, unix seconds)
// to wall-clock time.
func timestampHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return time.Time{}, nil
	case docstore.Timestamp:
		return v.Time(), nil
	case *docstore.Timestamp:
		if v == nil {
			return time.Time{}, nil
		}
		return v.Time(), nil
	case map[string]interface{}:
		secs, err := toInt64(v["seconds"])
		if err != nil {
			return nil, fmt.Errorf("timestamp seconds: %w", err)
		}
		nanos, err := toInt64(v["nanos"])
		if err != nil {
			return nil, fmt.Errorf("timestamp nanos: %w", err)
		}
		return time.Unix(secs, nanos), nil
	case float64:
		return time.Unix(int64(v), 0), nil
	case int64:
		return time.Unix(v, 0), nil
	case int:
		return time.Unix(int64(v), 0), nil
	}
	return data, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

func decodeFields(fields docstore.Fields, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timestampHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(map[string]interface{}(fields))
}

// decodeApps maps a catalog snapshot to entries sorted by name.
// Documents that cannot be decoded are logged and skipped.
func decodeApps(snap *docstore.Snapshot, logger *logrus.Entry) []models.CatalogEntry {
	apps := make([]models.CatalogEntry, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		var app models.CatalogEntry
		if err := decodeFields(doc.Fields, &app); err != nil {
			logger.WithError(err).WithField("id", doc.ID).Warn("Skipping malformed catalog entry")
			continue
		}
		app.ID = doc.ID
		apps = append(apps, app)
	}
	sortApps(apps)
	return apps
}

// sortApps orders entries by name using locale-aware collation.
func sortApps(apps []models.CatalogEntry) {
	c := collate.New(language.Und)
	sort.SliceStable(apps, func(i, j int) bool {
		return c.CompareString(apps[i].Name, apps[j].Name) < 0
	})
}

// decodeMessages maps a messages snapshot to messages, newest first.
func decodeMessages(snap *docstore.Snapshot, logger *logrus.Entry) []models.ContactMessage {
	msgs := make([]models.ContactMessage, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		var msg models.ContactMessage
		if err := decodeFields(doc.Fields, &msg); err != nil {
			logger.WithError(err).WithField("id", doc.ID).Warn("Skipping malformed message")
			continue
		}
		msg.ID = doc.ID
		msgs = append(msgs, msg)
	}
	sortMessages(msgs)
	return msgs
}

// sortMessages orders messages by timestamp descending. Messages without a
// timestamp go last.
func sortMessages(msgs []models.ContactMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i].Timestamp, msgs[j].Timestamp
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
}
