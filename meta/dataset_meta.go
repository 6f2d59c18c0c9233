package meta

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/tensorvault/tensorvault/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DatasetMeta lists the tensors a dataset contains. Persisted as
// dataset_meta.json at the dataset root.
type DatasetMeta struct {
	Tensors []string `json:"tensors"`
}

// NewDatasetMeta returns an empty dataset meta.
func NewDatasetMeta() *DatasetMeta {
	return &DatasetMeta{Tensors: []string{}}
}

// HasTensor reports whether name is recorded in the meta.
func (dm *DatasetMeta) HasTensor(name string) bool {
	for _, t := range dm.Tensors {
		if t == name {
			return true
		}
	}
	return false
}

// Save writes the meta document.
func (dm *DatasetMeta) Save(ctx context.Context, provider storage.Provider) error {
	buf, err := json.Marshal(dm)
	if err != nil {
		return fmt.Errorf("failed to encode dataset meta: %w", err)
	}
	return provider.Set(ctx, DatasetMetaKey(), buf)
}

// LoadDatasetMeta reads the meta document.
func LoadDatasetMeta(ctx context.Context, provider storage.Provider) (*DatasetMeta, error) {
	buf, err := provider.Get(ctx, DatasetMetaKey())
	if err != nil {
		return nil, err
	}
	dm := &DatasetMeta{}
	if err := json.Unmarshal(buf, dm); err != nil {
		return nil, fmt.Errorf("failed to decode dataset meta: %w", err)
	}
	return dm, nil
}

// DatasetExists reports whether a dataset meta document is present.
func DatasetExists(ctx context.Context, provider storage.Provider) (bool, error) {
	_, err := provider.Get(ctx, DatasetMetaKey())
	if err != nil {
		var notFound storage.ErrKeyNotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
