package catalog

const TopicCatalogChanged = "catalog.changed"

// Partition key = product id (or the entity id), so changes to one entity stay ordered.
func PartitionKey(id string) []byte { return []byte(id) }
