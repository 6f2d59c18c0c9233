// Package meta holds the persisted dataset and tensor metadata documents,
// the object-store key layout, and the schema compatibility checks.
package meta

import "path"

const (
	datasetMetaFileName = "dataset_meta.json"
	tensorMetaFileName  = "tensor_meta.json"
	indexMapFileName    = "index_map"
	chunkNamesFileName  = "chunk_names"
	chunksDirName       = "chunks"
)

// DatasetMetaKey returns the key of the dataset meta document.
func DatasetMetaKey() string {
	return datasetMetaFileName
}

// TensorMetaKey returns the key of a tensor's meta document.
func TensorMetaKey(tensor string) string {
	return path.Join(tensor, tensorMetaFileName)
}

// IndexMapKey returns the key of a tensor's serialized index map.
func IndexMapKey(tensor string) string {
	return path.Join(tensor, indexMapFileName)
}

// ChunkNamesKey returns the key of a tensor's serialized chunk-name encoder.
func ChunkNamesKey(tensor string) string {
	return path.Join(tensor, chunkNamesFileName)
}

// ChunkKey returns the key of one raw chunk.
func ChunkKey(tensor, chunkName string) string {
	return path.Join(tensor, chunksDirName, chunkName)
}
