package events

const (
	TopicQuotations = "o2c.quotations"
	TopicOrders     = "o2c.orders"
	TopicInvoices   = "o2c.invoices"
	TopicStock      = "o2c.stock"
)

// AllTopics is what the journal projector subscribes to.
var AllTopics = []string{TopicQuotations, TopicOrders, TopicInvoices, TopicStock}

// Partition key = entity id, so every event of one order keeps its order.
func PartitionKey(id string) []byte { return []byte(id) }
