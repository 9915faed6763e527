package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	recentOrdersLimit   = 5
	topProductsLimit    = 5
	revenueWindowDays   = 7
	revenueWindowMonths = 12
)

// TopProduct is a best seller among completed orders.
type TopProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// DailyRevenue is one calendar day (UTC) of sales.
type DailyRevenue struct {
	Date       string          `json:"date"`
	Total      decimal.Decimal `json:"total"`
	OrderCount int64           `json:"orderCount"`
}

// MonthlyRevenue is one calendar month (UTC) of sales. Label is the short
// month name used on charts.
type MonthlyRevenue struct {
	Month      string          `json:"month"`
	Label      string          `json:"label"`
	Total      decimal.Decimal `json:"total"`
	OrderCount int64           `json:"orderCount"`
}

// Dashboard is the back-office overview.
type Dashboard struct {
	TotalProducts       int64                       `json:"totalProducts"`
	TotalOrders         int64                       `json:"totalOrders"`
	TotalRevenue        decimal.Decimal             `json:"totalRevenue"`
	StatusCounts        map[enums.OrderStatus]int64 `json:"statusCounts"`
	RecentOrders        []orders.OrderDTO           `json:"recentOrders"`
	TopProducts         []TopProduct                `json:"topProducts"`
	RevenueLast7Days    []DailyRevenue              `json:"revenueLast7Days"`
	RevenueLast12Months []MonthlyRevenue            `json:"revenueLast12Months"`
}

// SalesFilter narrows the sales report. To is exclusive.
type SalesFilter struct {
	From   *time.Time
	To     *time.Time
	Status *enums.OrderStatus
}

// SalesSummary totals a sales report.
type SalesSummary struct {
	TotalSales        decimal.Decimal `json:"totalSales"`
	TotalOrders       int64           `json:"totalOrders"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
}

// SalesReport is daily and monthly sales for a filter.
type SalesReport struct {
	Days    []DailyRevenue   `json:"days"`
	Months  []MonthlyRevenue `json:"months"`
	Summary SalesSummary     `json:"summary"`
}

// Service builds operator reports.
type Service interface {
	Dashboard(ctx context.Context, actor access.Actor) (*Dashboard, error)
	Sales(ctx context.Context, actor access.Actor, filter SalesFilter) (*SalesReport, error)
}

type service struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Dashboard(ctx context.Context, actor access.Actor) (*Dashboard, error) {
	if err := access.Authorize(actor, access.ActionViewDashboard, access.Resource{Kind: "dashboard"}); err != nil {
		return nil, err
	}

	products, err := s.repo.CountProducts(ctx)
	if err != nil {
		return nil, dbErr(err, "count products")
	}

	counts := make(map[enums.OrderStatus]int64, 6)
	for _, status := range enums.OrderStatuses() {
		counts[status] = 0
	}
	rows, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, dbErr(err, "count orders")
	}
	var totalOrders int64
	for _, row := range rows {
		counts[row.Status] = row.Count
		totalOrders += row.Count
	}

	revenue, err := s.repo.RevenueByStatus(ctx, enums.OrderStatusCompleted)
	if err != nil {
		return nil, dbErr(err, "sum revenue")
	}

	recent, err := s.repo.RecentOrders(ctx, recentOrdersLimit)
	if err != nil {
		return nil, dbErr(err, "recent orders")
	}

	ranked, err := s.repo.TopProducts(ctx, enums.OrderStatusCompleted, topProductsLimit)
	if err != nil {
		return nil, dbErr(err, "top products")
	}
	top := make([]TopProduct, 0, len(ranked))
	for _, row := range ranked {
		top = append(top, TopProduct{ProductID: row.ProductID, Name: row.Name, Quantity: row.Quantity, Revenue: row.Revenue})
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(revenueWindowDays - 1))
	to := today.AddDate(0, 0, 1)
	completed := enums.OrderStatusCompleted
	days, err := s.repo.DailyTotals(ctx, &from, &to, &completed)
	if err != nil {
		return nil, dbErr(err, "daily revenue")
	}

	thisMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstMonth := thisMonth.AddDate(0, -(revenueWindowMonths - 1), 0)
	nextMonth := thisMonth.AddDate(0, 1, 0)
	months, err := s.repo.MonthlyTotals(ctx, &firstMonth, &nextMonth, &completed)
	if err != nil {
		return nil, dbErr(err, "monthly revenue")
	}

	return &Dashboard{
		TotalProducts:       products,
		TotalOrders:         totalOrders,
		TotalRevenue:        revenue,
		StatusCounts:        counts,
		RecentOrders:        orders.NewOrderDTOs(recent),
		TopProducts:         top,
		RevenueLast7Days:    fillDays(days, from, revenueWindowDays),
		RevenueLast12Months: fillMonths(months, firstMonth, revenueWindowMonths),
	}, nil
}

func (s *service) Sales(ctx context.Context, actor access.Actor, filter SalesFilter) (*SalesReport, error) {
	if err := access.Authorize(actor, access.ActionViewDashboard, access.Resource{Kind: "sales_report"}); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid date range").
			WithDetails(map[string]string{"endDate": "must not be before startDate"})
	}
	rows, err := s.repo.DailyTotals(ctx, filter.From, filter.To, filter.Status)
	if err != nil {
		return nil, dbErr(err, "daily sales")
	}

	report := &SalesReport{Days: make([]DailyRevenue, 0, len(rows)), Months: []MonthlyRevenue{}}
	for _, row := range rows {
		report.Days = append(report.Days, DailyRevenue{Date: row.Day, Total: row.Total, OrderCount: row.OrderCount})
		report.Months = addToMonth(report.Months, row)
		report.Summary.TotalSales = report.Summary.TotalSales.Add(row.Total)
		report.Summary.TotalOrders += row.OrderCount
	}
	if report.Summary.TotalOrders > 0 {
		report.Summary.AverageOrderValue = report.Summary.TotalSales.
			Div(decimal.NewFromInt(report.Summary.TotalOrders)).
			Round(2)
	}
	return report, nil
}

// fillDays returns n consecutive days starting at from, with zero totals for
// days that had no sales.
func fillDays(rows []dayRow, from time.Time, n int) []DailyRevenue {
	byDay := make(map[string]dayRow, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row
	}
	out := make([]DailyRevenue, 0, n)
	for i := 0; i < n; i++ {
		day := from.AddDate(0, 0, i).Format(dayLayout)
		row := byDay[day]
		out = append(out, DailyRevenue{Date: day, Total: row.Total, OrderCount: row.OrderCount})
	}
	return out
}

// fillMonths returns n consecutive months starting at from, with zero totals
// for months that had no sales.
func fillMonths(rows []monthRow, from time.Time, n int) []MonthlyRevenue {
	byMonth := make(map[string]monthRow, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = row
	}
	out := make([]MonthlyRevenue, 0, n)
	for i := 0; i < n; i++ {
		start := from.AddDate(0, i, 0)
		month := start.Format(monthLayout)
		row := byMonth[month]
		out = append(out, MonthlyRevenue{Month: month, Label: start.Format("Jan"), Total: row.Total, OrderCount: row.OrderCount})
	}
	return out
}

// addToMonth folds a day row into its month. Day rows arrive in date order,
// so a new month is always appended.
func addToMonth(months []MonthlyRevenue, day dayRow) []MonthlyRevenue {
	if len(day.Day) < len(monthLayout) {
		return months
	}
	month := day.Day[:len(monthLayout)]
	if n := len(months); n > 0 && months[n-1].Month == month {
		months[n-1].Total = months[n-1].Total.Add(day.Total)
		months[n-1].OrderCount += day.OrderCount
		return months
	}
	label := month
	if t, err := time.Parse(monthLayout, month); err == nil {
		label = t.Format("Jan")
	}
	return append(months, MonthlyRevenue{Month: month, Label: label, Total: day.Total, OrderCount: day.OrderCount})
}

func dbErr(err error, what string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: "+what)
}
