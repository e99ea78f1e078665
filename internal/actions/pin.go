package actions

import (
	"context"
	"net/http"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/store"
)

// ChangePin sets, changes or removes the wallet PIN. An empty newPin turns
// the PIN off. When the PIN info changed underneath, it is refetched and
// the change retried once. A wrong current PIN is reported as WrongPin.
func (m *Manager) ChangePin(ctx context.Context, pin, newPin string) error {
	w, err := m.wallet(ctx)
	if err != nil {
		return err
	}
	uri := w.Entrypoints.PinInfo.URI

	info, err := store.Get[*canonical.PinInfo](ctx, m.store, m.userID, uri)
	if fault.Is(err, fault.KindRecordDoesNotExist) {
		info, err = m.refetchPinInfo(ctx, uri)
	}
	if err != nil {
		return err
	}

	updated, err := m.patchPin(ctx, info, pin, newPin)
	if fault.Is(err, fault.KindConflictingUpdate) {
		m.logger.Info("pin info changed, retrying", "uri", uri)
		if info, err = m.refetchPinInfo(ctx, uri); err != nil {
			return err
		}
		updated, err = m.patchPin(ctx, info, pin, newPin)
	}
	return m.save(ctx, updated, err)
}

func (m *Manager) patchPin(ctx context.Context, info *canonical.PinInfo, pin, newPin string) (*canonical.PinInfo, error) {
	body := pinBody{
		Type:           "PinInfo",
		Status:         canonical.PinStatusOn,
		LatestUpdateID: info.LatestUpdateID + 1,
		Pin:            pin,
		NewPin:         newPin,
	}
	if newPin == "" {
		body.Status = canonical.PinStatusOff
	}
	resp, err := m.client.Patch(ctx, info.URI, body)
	if err != nil {
		return nil, fault.FromHTTP("change pin", err, http.StatusConflict, http.StatusForbidden)
	}
	return canonical.FromResponse(resp, canonical.MapPinInfo, canonical.PinInfoURI)
}

func (m *Manager) refetchPinInfo(ctx context.Context, uri string) (*canonical.PinInfo, error) {
	info, err := canonical.Fetch(ctx, m.client, uri, canonical.MapPinInfo, canonical.PinInfoURI)
	if err != nil {
		return nil, err
	}
	if err := m.save(ctx, info, nil); err != nil {
		return nil, err
	}
	return info, nil
}
