package mapstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/mapping"
	"github.com/smilesmith9879/new-car/natsclient"
	"github.com/smilesmith9879/new-car/pkg/retry"
)

// DefaultBucket is the object store bucket holding persisted maps.
const DefaultBucket = "CAR_MAPS"

// ObjectStore persists maps in a NATS JetStream object store bucket, for
// deployments where maps outlive the vehicle process.
type ObjectStore struct {
	bucket jetstream.ObjectStore
	retry  retry.Config
}

var _ mapping.Store = (*ObjectStore)(nil)

// NewObjectStore creates or opens the bucket through the shared client.
func NewObjectStore(ctx context.Context, client *natsclient.Client, bucketName string) (*ObjectStore, error) {
	if bucketName == "" {
		bucketName = DefaultBucket
	}

	bucket, err := client.CreateObjectStoreBucket(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: "persisted vehicle maps",
	})
	if err != nil {
		return nil, errors.WrapIOFailure(err, "mapstore", "NewObjectStore", "open bucket")
	}

	return &ObjectStore{
		bucket: bucket,
		retry:  retry.Quick(),
	}, nil
}

// Save serializes the map and writes it with retry on transient failures.
func (s *ObjectStore) Save(ctx context.Context, name string, m *mapping.Map) error {
	if name == "" {
		return errors.WrapInvalidArgument(
			fmt.Errorf("map name must not be empty"),
			"mapstore", "Save", "name validation")
	}

	data, err := json.Marshal(m)
	if err != nil {
		return errors.WrapIOFailure(err, "mapstore", "Save", "serialize map")
	}

	err = retry.Do(ctx, s.retry, func() error {
		_, putErr := s.bucket.PutBytes(ctx, name, data)
		return putErr
	})
	if err != nil {
		return errors.WrapIOFailure(err, "mapstore", "Save", "write object")
	}
	return nil
}

// Load reads and deserializes a named map.
func (s *ObjectStore) Load(ctx context.Context, name string) (*mapping.Map, error) {
	data, err := retry.DoWithResult(ctx, s.retry, func() ([]byte, error) {
		b, getErr := s.bucket.GetBytes(ctx, name)
		if stderrors.Is(getErr, jetstream.ErrObjectNotFound) {
			return nil, retry.NonRetryable(getErr)
		}
		return b, getErr
	})
	if err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, errors.WrapNotFound(
				fmt.Errorf("%w: %q", errors.ErrMapNotFound, name),
				"mapstore", "Load", "map lookup")
		}
		return nil, errors.WrapIOFailure(err, "mapstore", "Load", "read object")
	}

	var m mapping.Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapIOFailure(err, "mapstore", "Load", "deserialize map")
	}
	return &m, nil
}

// List returns the names of all stored maps.
func (s *ObjectStore) List(ctx context.Context) ([]string, error) {
	listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	infos, err := s.bucket.List(listCtx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoObjectsFound) {
			return []string{}, nil
		}
		return nil, errors.WrapIOFailure(err, "mapstore", "List", "list objects")
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names, nil
}

// Delete removes a stored map.
func (s *ObjectStore) Delete(ctx context.Context, name string) error {
	if err := s.bucket.Delete(ctx, name); err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return errors.WrapNotFound(
				fmt.Errorf("%w: %q", errors.ErrMapNotFound, name),
				"mapstore", "Delete", "map lookup")
		}
		return errors.WrapIOFailure(err, "mapstore", "Delete", "delete object")
	}
	return nil
}
