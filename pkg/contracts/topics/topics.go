package topics

const (
	// Apostas
	BetSettled = "bet_settled"

	// DLQs
	BetSettledDLQ = "bet_settled_dlq"
)

// Canal Redis Pub/Sub usado para empurrar mudanças de status aos clientes WS
const BetStatusBroadcast = "bet_status_broadcast"
