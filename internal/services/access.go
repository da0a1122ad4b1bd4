package services

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"Access-Telegram-bot/internal/db"
)

// Membership: операции Bot API над участниками группы.
type Membership interface {
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	RemoveMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
}

// Identity: Telegram-аккаунт, от имени которого пришло событие
type Identity struct {
	TelegramID int64
	Username   string
	FullName   string
}

func (i Identity) key() string {
	return strconv.FormatInt(i.TelegramID, 10)
}

type Params struct {
	DB         *gorm.DB
	Log        *zap.Logger
	Membership Membership
	Metrics    *Metrics
	Now        func() time.Time
}

// AccessService связывает оплаты с Telegram-аккаунтами и управляет доступом в группу.
// Каждая операция выполняется в одной транзакции, внешний вызов идёт до записи.
type AccessService struct {
	db         *gorm.DB
	log        *zap.Logger
	membership Membership
	metrics    *Metrics
	now        func() time.Time
}

func NewAccessService(p Params) *AccessService {
	if p.Log == nil {
		p.Log = zap.NewNop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &AccessService{
		db:         p.DB,
		log:        p.Log,
		membership: p.Membership,
		metrics:    p.Metrics,
		now:        func() time.Time { return p.Now().UTC() },
	}
}

// ClaimResult: итог самостоятельной проверки оплаты.
// Group == nil значит, что группа для выдачи доступа ещё не настроена.
type ClaimResult struct {
	Payment   db.Payment
	Group     *db.CurrentGroup
	Reclaimed bool // оплата уже была привязана к этому же аккаунту
}

// Claim находит оплату по email/телефону/order_id и привязывает её к пользователю.
func (s *AccessService) Claim(ctx context.Context, who Identity, query string) (*ClaimResult, error) {
	res := &ClaimResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pay, err := FindClaimablePayment(tx, query)
		if err != nil {
			return err
		}
		if pay == nil {
			// Своя оплата среди совпадений: повторная проверка, а не конфликт
			owned, err := s.ownedPayment(tx, who, query)
			if err != nil {
				return err
			}
			if owned != nil {
				pay = owned
				res.Reclaimed = true
			}
		}
		if pay == nil {
			used, err := FindUsedPaidPayment(tx, query)
			if err != nil {
				return err
			}
			if used == nil {
				return ErrPaymentNotFound
			}
			owner, err := db.FindUserByPaymentID(tx, used.ID)
			if err != nil {
				return err
			}
			switch {
			case owner == nil:
				return ErrPaymentAlreadyUsed
			case owner.TelegramID != who.key():
				return ErrBoundToAnotherUser
			}
			pay = used
			res.Reclaimed = true
		}

		// Перепроверяем владельца под блокировкой прямо перед записью
		locked, err := db.LockPayment(tx, pay.ID)
		if err != nil {
			return err
		}
		owners, err := db.LockPaymentOwners(tx, pay.ID)
		if err != nil {
			return err
		}
		for _, o := range owners {
			if o.TelegramID != who.key() {
				return ErrBoundToAnotherUser
			}
		}

		user, err := db.EnsureUser(tx, who.key(), who.Username, who.FullName)
		if err != nil {
			return err
		}
		if err := db.BindPayment(tx, user.ID, locked.ID); err != nil {
			return err
		}
		if err := db.MarkPaymentUsed(tx, locked.ID); err != nil {
			return err
		}
		locked.Used = true
		res.Payment = *locked

		res.Group, err = db.CurrentGroupRecord(tx)
		return err
	})
	if err != nil {
		s.log.Info("claim rejected", zap.Int64("telegram_id", who.TelegramID), zap.Error(err))
		return nil, err
	}
	s.metrics.Access("claimed")
	s.log.Info("payment claimed",
		zap.Int64("telegram_id", who.TelegramID),
		zap.String("order_id", res.Payment.OrderID),
		zap.Bool("reclaimed", res.Reclaimed),
		zap.Bool("group_configured", res.Group != nil))
	return res, nil
}

func (s *AccessService) ownedPayment(tx *gorm.DB, who Identity, query string) (*db.Payment, error) {
	user, err := db.FindUserByTelegramID(tx, who.key())
	if err != nil || user == nil || user.PaymentID == nil {
		return nil, err
	}
	return FindPaidPaymentByID(tx, query, *user.PaymentID)
}

// JoinRequest: заявка на вступление в группу
type JoinRequest struct {
	UserID    int64
	ChatID    int64
	ChatTitle string
}

// JoinDecision: результат обработки заявки. Reason заполнен, если заявка проигнорирована.
type JoinDecision struct {
	Approved bool
	Reason   string
}

// ConfirmJoin одобряет заявку на вступление, если у пользователя есть оплаченная привязка.
// Первая заявка запоминает chat_id актуальной группы, заявки в другие группы игнорируются.
func (s *AccessService) ConfirmJoin(ctx context.Context, req JoinRequest) (JoinDecision, error) {
	var decision JoinDecision
	telegramID := strconv.FormatInt(req.UserID, 10)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := db.FindUserByTelegramID(tx, telegramID)
		if err != nil {
			return err
		}
		if user == nil || user.PaymentID == nil {
			decision.Reason = "no bound payment"
			return nil
		}
		pay, err := db.LockPayment(tx, *user.PaymentID)
		if err != nil {
			return err
		}
		if pay == nil || pay.Status != db.StatusPaid {
			decision.Reason = "payment not paid"
			return nil
		}

		groupName := req.ChatTitle
		group, err := db.LockCurrentGroup(tx)
		if err != nil {
			return err
		}
		if group != nil {
			if group.ChatID != nil && *group.ChatID != req.ChatID {
				decision.Reason = "wrong group"
				return nil
			}
			if group.ChatID == nil {
				if err := db.SetGroupChatID(tx, group.ID, req.ChatID); err != nil {
					return err
				}
				s.log.Info("group chat id learned", zap.Int64("chat_id", req.ChatID), zap.String("group", group.GroupName))
			}
			if groupName == "" {
				groupName = group.GroupName
			}
		} else {
			s.log.Warn("join request approved without configured group", zap.Int64("chat_id", req.ChatID))
		}

		if err := s.membership.ApproveJoinRequest(ctx, req.ChatID, req.UserID); err != nil {
			return &TransportError{Op: "approve join request", Err: err}
		}

		if err := db.MarkPaymentUsed(tx, pay.ID); err != nil {
			return err
		}
		decision.Approved = true
		return db.AppendAccessLog(tx, &db.AccessLog{
			TelegramID: telegramID,
			Email:      pay.Email,
			OrderID:    pay.OrderID,
			GroupName:  groupName,
			GroupID:    strconv.FormatInt(req.ChatID, 10),
			Action:     db.ActionGranted,
			Timestamp:  s.now(),
			Comment:    "Auto-approved join request",
		})
	})
	if err != nil {
		s.log.Error("join request failed", zap.Int64("telegram_id", req.UserID), zap.Int64("chat_id", req.ChatID), zap.Error(err))
		return JoinDecision{}, err
	}
	if decision.Approved {
		s.metrics.Access(db.ActionGranted)
		s.log.Info("join request approved", zap.Int64("telegram_id", req.UserID), zap.Int64("chat_id", req.ChatID))
	} else {
		s.log.Info("join request ignored", zap.Int64("telegram_id", req.UserID), zap.Int64("chat_id", req.ChatID), zap.String("reason", decision.Reason))
	}
	return decision, nil
}

// Rebind перепривязывает оплату (любого статуса) к указанному Telegram ID.
// Прежний владелец теряет привязку, но остаётся в базе.
func (s *AccessService) Rebind(ctx context.Context, query, telegramID string) (*db.Payment, error) {
	if !isDigits(telegramID) {
		return nil, ErrInvalidTelegramID
	}
	var result *db.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pay, err := FindAnyPayment(tx, query)
		if err != nil {
			return err
		}
		if pay == nil {
			return ErrPaymentNotFound
		}
		locked, err := db.LockPayment(tx, pay.ID)
		if err != nil {
			return err
		}
		target, err := db.EnsureUser(tx, telegramID, "", "")
		if err != nil {
			return err
		}
		owners, err := db.LockPaymentOwners(tx, locked.ID)
		if err != nil {
			return err
		}
		for _, o := range owners {
			if o.ID == target.ID {
				continue
			}
			if err := db.ClearBinding(tx, o.ID); err != nil {
				return err
			}
			s.log.Info("binding evicted", zap.String("telegram_id", o.TelegramID), zap.String("order_id", locked.OrderID))
		}
		if err := db.BindPayment(tx, target.ID, locked.ID); err != nil {
			return err
		}
		if err := db.MarkPaymentUsed(tx, locked.ID); err != nil {
			return err
		}
		locked.Used = true
		result = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Access("rebound")
	s.log.Info("payment rebound", zap.String("order_id", result.OrderID), zap.String("telegram_id", telegramID))
	return result, nil
}

// MemberActionResult: что было сделано при удалении/разбане участника
type MemberActionResult struct {
	Payment db.Payment
	User    db.User
	Group   db.CurrentGroup
}

// Revoke удаляет (банит) владельца оплаты из группы. Привязка сохраняется, чтобы доступ можно было вернуть.
func (s *AccessService) Revoke(ctx context.Context, actorID int64, query string) (*MemberActionResult, error) {
	return s.memberAction(ctx, actorID, query, memberAction{
		name:        db.ActionRevoked,
		comment:     "Removed by admin",
		forbidSelf:  true,
		call:        s.membership.RemoveMember,
		transportOp: "remove member",
	})
}

// Restore разбанивает владельца оплаты, после этого он может снова подать заявку.
func (s *AccessService) Restore(ctx context.Context, actorID int64, query string) (*MemberActionResult, error) {
	return s.memberAction(ctx, actorID, query, memberAction{
		name:        db.ActionUnbanned,
		comment:     "Unbanned by admin",
		call:        s.membership.UnbanMember,
		transportOp: "unban member",
	})
}

type memberAction struct {
	name        string
	comment     string
	forbidSelf  bool
	call        func(ctx context.Context, chatID, userID int64) error
	transportOp string
}

func (s *AccessService) memberAction(ctx context.Context, actorID int64, query string, act memberAction) (*MemberActionResult, error) {
	res := &MemberActionResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pay, err := FindAnyPayment(tx, query)
		if err != nil {
			return err
		}
		if pay == nil {
			return ErrPaymentNotFound
		}
		user, err := db.FindUserByPaymentID(tx, pay.ID)
		if err != nil {
			return err
		}
		if user == nil || !isDigits(user.TelegramID) {
			return ErrUserNotBound
		}
		userID, err := strconv.ParseInt(user.TelegramID, 10, 64)
		if err != nil {
			return ErrUserNotBound
		}
		if act.forbidSelf && userID == actorID {
			return ErrSelfRevoke
		}
		group, err := db.CurrentGroupRecord(tx)
		if err != nil {
			return err
		}
		if group == nil {
			return ErrGroupNotConfigured
		}
		if group.ChatID == nil {
			return ErrGroupChatUnknown
		}

		if err := act.call(ctx, *group.ChatID, userID); err != nil {
			return &TransportError{Op: act.transportOp, Err: err}
		}

		res.Payment, res.User, res.Group = *pay, *user, *group
		return db.AppendAccessLog(tx, &db.AccessLog{
			TelegramID: user.TelegramID,
			Email:      orUnknown(pay.Email),
			OrderID:    orUnknown(pay.OrderID),
			GroupName:  group.GroupName,
			GroupID:    strconv.FormatInt(*group.ChatID, 10),
			Action:     act.name,
			Timestamp:  s.now(),
			Comment:    act.comment,
		})
	})
	if err != nil {
		s.log.Warn("member action failed", zap.String("action", act.name), zap.Int64("admin_id", actorID), zap.Error(err))
		return nil, err
	}
	s.metrics.Access(act.name)
	s.log.Info("member action done",
		zap.String("action", act.name),
		zap.Int64("admin_id", actorID),
		zap.String("telegram_id", res.User.TelegramID),
		zap.String("order_id", res.Payment.OrderID))
	return res, nil
}

// PaymentInfo: карточка оплаты для админа
type PaymentInfo struct {
	Payment db.Payment
	User    *db.User
	Logs    []db.AccessLog
}

func (s *AccessService) FindPayment(ctx context.Context, query string) (*PaymentInfo, error) {
	tx := s.db.WithContext(ctx)
	pay, err := FindAnyPayment(tx, query)
	if err != nil {
		return nil, err
	}
	if pay == nil {
		return nil, ErrPaymentNotFound
	}
	info := &PaymentInfo{Payment: *pay}
	if info.User, err = db.FindUserByPaymentID(tx, pay.ID); err != nil {
		return nil, err
	}
	if info.Logs, err = db.RecentAccessLogs(tx, pay.Email, pay.OrderID, 5); err != nil {
		return nil, err
	}
	return info, nil
}

// SetGroup делает новую группу актуальной
func (s *AccessService) SetGroup(ctx context.Context, inviteLink, name string) (*db.CurrentGroup, error) {
	group, err := db.CreateGroup(s.db.WithContext(ctx), inviteLink, name)
	if err != nil {
		return nil, err
	}
	s.log.Info("current group set", zap.String("group", name), zap.String("invite_link", inviteLink))
	return group, nil
}

// AddTestPayment создаёт оплаченную неиспользованную оплату вручную.
func (s *AccessService) AddTestPayment(ctx context.Context, orderID, email, phone string) (*db.Payment, error) {
	pay := &db.Payment{
		OrderID:   orderID,
		Email:     email,
		Phone:     NormalizePhone(phone),
		Status:    db.StatusPaid,
		CreatedAt: s.now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := db.FindPaymentByOrderID(tx, orderID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateOrder
		}
		return db.CreatePayment(tx, pay)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("test payment added", zap.String("order_id", orderID))
	return pay, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
