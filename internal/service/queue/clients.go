package queue

import (
	"context"
	"encoding/base64"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/queueapp/internal/domain"
)

const (
	// WrongNameMessage - клиента с таким именем нет.
	WrongNameMessage = "Wrong name"
	// NameUsedMessage - имя клиента уже занято.
	NameUsedMessage = "Name used"
	// NoClientWithNameMessage - имя из токена не найдено.
	NoClientWithNameMessage = "No client with given username"
)

// AddClient создаёт клиента без заказов. Пустой пароль заменяется на DefaultPassword.
func (s *Service) AddClient(ctx context.Context, name, password string) (domain.ClientOut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.store()
	existing, err := store.ClientByName(ctx, name)
	if err != nil {
		return domain.ClientOut{}, fmt.Errorf("get client %q: %w", name, err)
	}
	if existing != nil {
		s.logger.WithField("client_name", name).Warn("client already exists")
		return domain.ClientOut{}, &domain.ConflictError{Message: NameUsedMessage, Err: domain.ErrNameTaken}
	}

	if password == "" {
		password = DefaultPassword
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.ClientOut{}, err
	}
	id, err := store.AddClient(ctx, name, hash, "", nil)
	if err != nil {
		return domain.ClientOut{}, fmt.Errorf("add client %q: %w", name, err)
	}
	if id != 0 {
		s.logger.WithFields(log.Fields{"client_id": id, "client_name": name}).Info("created new client without orders")
		s.notifyClientCreated(name)
	}
	return domain.ClientOut{Name: name, Orders: []domain.OrderRecord{}}, nil
}

// ClientByName возвращает клиента или NotFoundError.
func (s *Service) ClientByName(ctx context.Context, name string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, err := s.store().ClientByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get client %q: %w", name, err)
	}
	if client == nil {
		return nil, domain.NewClientNotFound(nil, NoClientWithNameMessage)
	}
	return client.Clone(), nil
}

// Clients возвращает не более limit клиентов; limit <= 0 - всех.
func (s *Service) Clients(ctx context.Context, limit int) ([]domain.ClientOut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients, err := s.store().Clients(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]domain.ClientOut, 0, len(clients))
	for _, c := range clients {
		out = append(out, domain.MapClient(c))
	}
	return out, nil
}

// ChangeClientPassword хэширует и сохраняет новый пароль. Пустой пароль ничего не меняет.
func (s *Service) ChangeClientPassword(ctx context.Context, name, password string) (domain.ClientOut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.clientByNameLocked(ctx, name)
	if err != nil {
		return domain.ClientOut{}, err
	}
	if password != "" {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return domain.ClientOut{}, err
		}
		if err := s.store().ChangeClientPassword(ctx, client, hash); err != nil {
			return domain.ClientOut{}, fmt.Errorf("change password of %q: %w", name, err)
		}
	}
	return domain.MapClient(client), nil
}

// UpdateClient меняет имя и/или пароль клиента. nil оставляет поле без изменений.
func (s *Service) UpdateClient(ctx context.Context, name string, newName, newPassword *string) (domain.ClientOut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.clientByNameLocked(ctx, name)
	if err != nil {
		return domain.ClientOut{}, err
	}
	updated := client.Clone()
	if newName != nil && *newName != name {
		taken, err := s.store().ClientByName(ctx, *newName)
		if err != nil {
			return domain.ClientOut{}, fmt.Errorf("get client %q: %w", *newName, err)
		}
		if taken != nil {
			return domain.ClientOut{}, &domain.ConflictError{Message: NameUsedMessage, Err: domain.ErrNameTaken}
		}
		updated.Name = *newName
	}
	if newPassword != nil {
		hash, err := s.hasher.Hash(*newPassword)
		if err != nil {
			return domain.ClientOut{}, err
		}
		updated.Password = hash
	}
	if err := s.store().UpdateOneClient(ctx, name, updated); err != nil {
		return domain.ClientOut{}, fmt.Errorf("update client %q: %w", name, err)
	}
	return domain.MapClient(updated), nil
}

// Login проверяет имя и пароль клиента.
func (s *Service) Login(ctx context.Context, name, password string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loginLocked(ctx, name, password)
}

func (s *Service) loginLocked(ctx context.Context, name, password string) (*domain.Client, error) {
	client, err := s.clientByNameLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(client.Password, password) {
		s.logger.WithField("client_name", name).Warn("wrong password")
		return nil, domain.ErrWrongPassword
	}
	return client.Clone(), nil
}

// SetClientPhoto проверяет логин и сохраняет фото в base64.
func (s *Service) SetClientPhoto(ctx context.Context, name, password string, photo []byte) (domain.ClientOut, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.loginLocked(ctx, name, password)
	if err != nil {
		return domain.ClientOut{}, err
	}
	client.Photo = base64.StdEncoding.EncodeToString(photo)
	if err := s.store().UpdateOneClient(ctx, name, client); err != nil {
		return domain.ClientOut{}, fmt.Errorf("set photo of %q: %w", name, err)
	}
	return domain.MapClient(client), nil
}

// DeleteClientsInRange удаляет клиентов с first <= ID <= last вместе с их заказами.
func (s *Service) DeleteClientsInRange(ctx context.Context, first, last int64) (int, error) {
	if first > last {
		s.logger.WithFields(log.Fields{"first": first, "last": last}).Warn("invalid client range")
		return 0, domain.ErrInvalidRange
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.store()
	clients, err := store.Clients(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list clients: %w", err)
	}
	removed := 0
	for _, c := range clients {
		if c.ID < first || c.ID > last {
			continue
		}
		ordersCount := len(c.Orders)
		if err := store.RemoveAllClientsOrders(ctx, c); err != nil {
			return removed, fmt.Errorf("remove orders of client %d: %w", c.ID, err)
		}
		if err := store.RemoveClient(ctx, c); err != nil {
			return removed, fmt.Errorf("remove client %d: %w", c.ID, err)
		}
		s.metrics.RecordOrdersDeleted(ordersCount)
		removed++
	}
	s.logger.WithField("removed_count", removed).Info("clients removed")
	return removed, nil
}

func (s *Service) clientByNameLocked(ctx context.Context, name string) (*domain.Client, error) {
	client, err := s.store().ClientByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get client %q: %w", name, err)
	}
	if client == nil {
		s.logger.WithField("client_name", name).Warn("no client with name")
		return nil, domain.NewClientNotFound(nil, WrongNameMessage)
	}
	return client, nil
}
