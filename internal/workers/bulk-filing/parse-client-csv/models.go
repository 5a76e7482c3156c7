package parseclientcsv

type Input struct {
	SessionID string `json:"sessionId"`
	CSVText   string `json:"csvText"`
}

type Output struct {
	ClientCount  int      `json:"clientCount"`
	TotalClients int      `json:"totalClients"`
	ClientIDs    []string `json:"clientIds"`
	Step         int      `json:"step"`
}
