package api

import (
	"context"
	"net/http"

	"recipe-companion/internal/planner"
)

var _ planner.CalendarReader = (*Client)(nil)

// GetCalendarItem returns the user's meal events for date (YYYY-MM-DD).
// A day the backend does not know comes back empty.
func (c *Client) GetCalendarItem(ctx context.Context, date string) (planner.CalendarItem, error) {
	if _, err := planner.ParseDate(date); err != nil {
		return planner.CalendarItem{}, err
	}
	tenant, err := c.tenant()
	if err != nil {
		return planner.CalendarItem{}, err
	}

	var item planner.CalendarItem
	err = c.do(ctx, call{
		method: http.MethodGet,
		route:  "/users/{tenantId}/calendar/{date}",
		path:   "/users/" + segment(tenant) + "/calendar/" + date,
		auth:   true,
	}, &item)
	if IsNotFound(err) {
		return planner.CalendarItem{Date: date}, nil
	}
	if err != nil {
		return planner.CalendarItem{}, err
	}
	if item.Date == "" {
		item.Date = date
	}
	return item, nil
}

// UpsertMealEvents adds events to a day. The backend replaces any event
// with the same meal type.
func (c *Client) UpsertMealEvents(ctx context.Context, u planner.CalendarUpdate) (planner.CalendarItem, error) {
	return c.writeCalendar(ctx, http.MethodPut, u)
}

// RemoveMealEvents removes events matching meal type and recipe id or event name.
func (c *Client) RemoveMealEvents(ctx context.Context, u planner.CalendarUpdate) (planner.CalendarItem, error) {
	return c.writeCalendar(ctx, http.MethodDelete, u)
}

func (c *Client) writeCalendar(ctx context.Context, method string, u planner.CalendarUpdate) (planner.CalendarItem, error) {
	if err := u.Validate(); err != nil {
		return planner.CalendarItem{}, err
	}
	tenant, err := c.tenant()
	if err != nil {
		return planner.CalendarItem{}, err
	}
	var item planner.CalendarItem
	err = c.do(ctx, call{
		method: method,
		route:  "/users/{tenantId}/calendar",
		path:   "/users/" + segment(tenant) + "/calendar",
		body:   u,
		auth:   true,
	}, &item)
	return item, err
}
