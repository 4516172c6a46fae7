package consts

const (
	// Agents
	Agent_StockPriceAnalyst  = "Senior Stock Price Analyst"
	Agent_StockNewsAnalyst   = "Stock News Analyst"
	Agent_StockAnalystWriter = "Senior Stock Analyst Writer"
	Agent_CrewManager        = "Crew Manager"
)

const (
	// Tasks
	Task_GetStockPrice = "get_stock_price"
	Task_GetStockNews  = "get_stock_news"
	Task_WriteAnalyses = "write_analyses"
)

const (
	// Kickoff inputs
	Input_Ticket      = "ticket"
	Input_DtStart     = "dt_start"
	Input_DtEnd       = "dt_end"
	Input_CurrentDate = "current_date"
)

const DateLayout = "2006-01-02"
