package ormstore

import (
	"time"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

// orderModel отображает строку таблицы orders.
type orderModel struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Description  string    `gorm:"column:description;not null;uniqueIndex"`
	Time         int       `gorm:"column:time;not null"`
	Status       string    `gorm:"column:status;not null"`
	ClientID     *int64    `gorm:"column:client_id;index"`
	CreationDate time.Time `gorm:"column:creation_date;not null"`
}

func (orderModel) TableName() string { return "orders" }

// clientModel отображает строку таблицы clients вместе с заказами по внешнему ключу.
type clientModel struct {
	ID       int64        `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name     string       `gorm:"column:name;not null;uniqueIndex"`
	Password string       `gorm:"column:password;not null"`
	Photo    string       `gorm:"column:photo;not null"`
	Orders   []orderModel `gorm:"foreignKey:ClientID;references:ID;constraint:OnDelete:SET NULL"`
}

func (clientModel) TableName() string { return "clients" }

func newOrderModel(o *domain.Order) orderModel {
	return orderModel{
		ID:           o.ID,
		Description:  o.Description,
		Time:         o.Time,
		Status:       string(o.Status),
		ClientID:     domain.CloneID(o.ClientID),
		CreationDate: o.CreationDate.UTC(),
	}
}

func (m orderModel) toDomain() *domain.Order {
	return &domain.Order{
		ID:           m.ID,
		Description:  m.Description,
		Time:         m.Time,
		Status:       domain.OrderStatus(m.Status),
		ClientID:     domain.CloneID(m.ClientID),
		CreationDate: m.CreationDate.UTC(),
	}
}

func (m clientModel) toDomain() *domain.Client {
	orders := make([]*domain.Order, 0, len(m.Orders))
	for _, o := range m.Orders {
		orders = append(orders, o.toDomain())
	}
	return &domain.Client{
		ID:       m.ID,
		Name:     m.Name,
		Password: m.Password,
		Photo:    m.Photo,
		Orders:   orders,
	}
}

func ordersToDomain(models []orderModel) []*domain.Order {
	out := make([]*domain.Order, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}

func clientsToDomain(models []clientModel) []*domain.Client {
	out := make([]*domain.Client, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}
