package api

type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

type Health struct {
	OK   bool   `json:"ok"`
	Time string `json:"time"`
}

type NodeStatus struct {
	NodeID     string `json:"nodeID"`
	StartedAt  string `json:"startedAt"`
	UptimeSec  int64  `json:"uptimeSec"`
	Peers      int    `json:"peers"`
	Length     int    `json:"length"`
	TipHash    string `json:"tipHash"`
	Difficulty uint32 `json:"difficulty"`
	Valid      bool   `json:"valid"`
}

type Transaction struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    uint64        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previousHash"`
	Hash         string        `json:"hash"`
	Nonce        uint64        `json:"nonce"`
}

type Chain struct {
	Length     int     `json:"length"`
	Difficulty uint32  `json:"difficulty"`
	TipHash    string  `json:"tipHash"`
	Blocks     []Block `json:"blocks"`
}

type Validity struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type SubmitRequest struct {
	Transactions []Transaction `json:"transactions"`
}

type SubmitResponse struct {
	OK    bool  `json:"ok"`
	Block Block `json:"block"`
}

type ConsensusResult struct {
	Adopted     bool   `json:"adopted"`
	Source      string `json:"source,omitempty"`
	Length      int    `json:"length"`
	Examined    int    `json:"examined"`
	Invalid     int    `json:"invalid"`
	Unreachable int    `json:"unreachable"`
}

type AddPeerRequest struct {
	URL string `json:"url"`
}

type AddPeerResponse struct {
	OK    bool   `json:"ok"`
	Added bool   `json:"added"`
	Peer  string `json:"peer"`
}

type PeerList struct {
	Count int      `json:"count"`
	Peers []string `json:"peers"`
}

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
