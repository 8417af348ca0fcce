package orders

import "strconv"

const TopicOrderCreated = "order_created"

// Partition key = order id, so every event of one order keeps its order.
func PartitionKey(orderID int64) []byte { return strconv.AppendInt(nil, orderID, 10) }
