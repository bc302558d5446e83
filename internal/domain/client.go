package domain

// Client - владелец заказов.
type Client struct {
	ID   int64
	Name string
	// Password хранится в том виде, в каком его передал вызывающий код (обычно хэш).
	Password string
	// Photo - base64-представление фотографии, по умолчанию пустое.
	Photo  string
	Orders []*Order
}

// ClientOut - проекция клиента без пароля.
type ClientOut struct {
	Name   string        `json:"name"`
	Photo  string        `json:"photo"`
	Orders []OrderRecord `json:"orders"`
}

// MapClient строит публичную проекцию клиента.
func MapClient(c *Client) ClientOut {
	if c == nil {
		return ClientOut{Orders: []OrderRecord{}}
	}
	out := ClientOut{
		Name:   c.Name,
		Photo:  c.Photo,
		Orders: make([]OrderRecord, 0, len(c.Orders)),
	}
	for _, o := range c.Orders {
		out.Orders = append(out.Orders, o.Record())
	}
	return out
}

// OrderIDs возвращает идентификаторы заказов клиента в исходном порядке.
func (c *Client) OrderIDs() []int64 {
	ids := make([]int64, 0, len(c.Orders))
	for _, o := range c.Orders {
		ids = append(ids, o.ID)
	}
	return ids
}

// Clone возвращает глубокую копию клиента вместе с заказами.
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Orders = CloneOrders(c.Orders)
	if cp.Orders == nil {
		cp.Orders = []*Order{}
	}
	return &cp
}
