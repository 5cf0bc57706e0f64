package ports

import (
	"context"

	"github.com/parlayhub/parlayd/internal/domain"
)

// ParlayStore persiste parlays, legs y order snapshots. Un parlay se crea
// una vez, transiciona status in place y nunca se borra.
type ParlayStore interface {
	// CreateParlay inserta el parlay con sus legs en una transacción.
	CreateParlay(ctx context.Context, p domain.Parlay) error

	// GetParlay devuelve el parlay con sus legs.
	// Devuelve domain.ErrParlayNotFound si no existe.
	GetParlay(ctx context.Context, id string) (domain.Parlay, error)

	// UserParlays devuelve los parlays del usuario, más recientes primero.
	UserParlays(ctx context.Context, userAddress string) ([]domain.Parlay, error)

	// UserParlaysByStatus filtra además por status.
	UserParlaysByStatus(ctx context.Context, userAddress string, status domain.ParlayStatus) ([]domain.Parlay, error)

	// UpdateParlayStatus aplica una transición condicional de status
	// (compare-and-set sobre el status previo). settlement puede ser nil.
	// Devuelve false si el parlay no estaba en el status esperado —
	// el caller debe tratarlo como no-op, no como error.
	UpdateParlayStatus(ctx context.Context, id string, from, to domain.ParlayStatus, settlement *domain.Settlement) (bool, error)

	// SaveOrderSnapshot registra un intento de envío de orden.
	SaveOrderSnapshot(ctx context.Context, snap domain.OrderSnapshot) (int64, error)

	// OrderSnapshots devuelve los snapshots del parlay en orden de creación.
	OrderSnapshots(ctx context.Context, parlayID string) ([]domain.OrderSnapshot, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
