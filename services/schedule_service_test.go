package services

import (
	"errors"
	"testing"
	"time"

	"github.com/Raihan-Sharif/finmate-sub002/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB открывает базу sqlite в памяти с полной схемой
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// База :memory: существует в рамках одного соединения
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get connection pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Loan{},
		&models.EmiSchedule{},
		&models.EmiPayment{},
		&models.Lending{},
		&models.LendingPayment{},
	); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

func TestInstallmentDueDate(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	// Без желаемого дня платежа дата сдвигается на месяц от даты выдачи
	got := InstallmentDueDate(start, 1, 0)
	want := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("installment 1: got %v want %v", got, want)
	}

	got = InstallmentDueDate(start, 6, 0)
	want = time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("installment 6: got %v want %v", got, want)
	}

	// Желаемый день платежа привязывает дату к этому дню месяца
	got = InstallmentDueDate(start, 1, 10)
	want = time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("payment day 10: got %v want %v", got, want)
	}

	// День за пределами 1-28 игнорируется
	got = InstallmentDueDate(start, 1, 31)
	want = time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("payment day 31: got %v want %v", got, want)
	}
}

func TestBuildScheduleRows(t *testing.T) {
	loan := &models.Loan{
		PrincipalAmount: decimal.NewFromInt(10000),
		InterestRate:    0,
		TenureMonths:    4,
		StartDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	loan.ID = 7

	result, err := CalculateAmortization(AmortizationInput{
		Principal:         loan.PrincipalAmount,
		AnnualRatePercent: loan.InterestRate,
		TenureMonths:      loan.TenureMonths,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := BuildScheduleRows(loan, result.Breakdown, 0)
	if len(rows) != 4 {
		t.Fatalf("rows length: got %d want 4", len(rows))
	}

	for i, row := range rows {
		if row.LoanID != 7 {
			t.Errorf("row %d: loan id %d want 7", i, row.LoanID)
		}
		if row.InstallmentNumber != i+1 {
			t.Errorf("row %d: installment number %d want %d", i, row.InstallmentNumber, i+1)
		}
		if row.IsPaid {
			t.Errorf("row %d: new installment must not be paid", i)
		}
		if !row.ActualPaymentAmount.IsZero() || !row.LateFee.IsZero() {
			t.Errorf("row %d: payment fields must start at zero", i)
		}
	}

	// Даты следуют помесячно от даты выдачи
	want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if !rows[0].DueDate.Equal(want) {
		t.Errorf("first due date: got %v want %v", rows[0].DueDate, want)
	}
	want = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if !rows[3].DueDate.Equal(want) {
		t.Errorf("last due date: got %v want %v", rows[3].DueDate, want)
	}
}

func TestBuildScheduleRowsWithOffset(t *testing.T) {
	loan := &models.Loan{
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	loan.ID = 3

	breakdown := []AmortizationEntry{
		{Month: 1, Emi: decimal.NewFromInt(1000), Principal: decimal.NewFromInt(900), Interest: decimal.NewFromInt(100), Balance: decimal.NewFromInt(1800)},
		{Month: 2, Emi: decimal.NewFromInt(1000), Principal: decimal.NewFromInt(900), Interest: decimal.NewFromInt(100), Balance: decimal.NewFromInt(900)},
	}

	// Хвост после досрочного погашения продолжает нумерацию с 6-го взноса
	rows := BuildScheduleRows(loan, breakdown, 5)
	if rows[0].InstallmentNumber != 6 || rows[1].InstallmentNumber != 7 {
		t.Errorf("installment numbers: got %d, %d want 6, 7",
			rows[0].InstallmentNumber, rows[1].InstallmentNumber)
	}

	// Даты считаются от номера взноса, а не от позиции в хвосте
	want := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if !rows[0].DueDate.Equal(want) {
		t.Errorf("first tail due date: got %v want %v", rows[0].DueDate, want)
	}
}

// createLoanWithSchedule создает займ в тестовой базе и генерирует график
func createLoanWithSchedule(t *testing.T, db *gorm.DB, svc *ScheduleService, principal int64, rate float64, months int) (*models.Loan, []models.EmiSchedule) {
	t.Helper()

	loan := &models.Loan{
		UserID:            1,
		Type:              models.LoanTypePersonal,
		PrincipalAmount:   decimal.NewFromInt(principal),
		OutstandingAmount: decimal.NewFromInt(principal),
		InterestRate:      rate,
		TenureMonths:      months,
		StartDate:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:            models.LoanStatusActive,
	}
	if err := db.Create(loan).Error; err != nil {
		t.Fatalf("failed to create loan: %v", err)
	}

	rows, err := svc.Generate(db, loan)
	if err != nil {
		t.Fatalf("failed to generate schedule: %v", err)
	}
	return loan, rows
}

// settleInstallments помечает первые n взносов оплаченными и уменьшает
// остаток долга на их основную часть
func settleInstallments(t *testing.T, db *gorm.DB, loan *models.Loan, rows []models.EmiSchedule, n int) {
	t.Helper()

	paidPrincipal := decimal.Zero
	for i := 0; i < n; i++ {
		rows[i].IsPaid = true
		rows[i].ActualPaymentAmount = rows[i].EmiAmount
		if err := db.Save(&rows[i]).Error; err != nil {
			t.Fatalf("failed to settle installment %d: %v", i+1, err)
		}
		paidPrincipal = paidPrincipal.Add(rows[i].PrincipalAmount)
	}

	loan.OutstandingAmount = loan.OutstandingAmount.Sub(paidPrincipal)
	if err := db.Save(loan).Error; err != nil {
		t.Fatalf("failed to update loan: %v", err)
	}
}

func TestGenerateCreatesSchedule(t *testing.T) {
	db := newTestDB(t)
	svc := NewScheduleService(db, 2)

	loan, rows := createLoanWithSchedule(t, db, svc, 10000, 0, 4)

	if len(rows) != 4 {
		t.Fatalf("rows length: got %d want 4", len(rows))
	}
	if !loan.EmiAmount.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("emi amount: got %v want 2500", loan.EmiAmount)
	}
	if !loan.OutstandingAmount.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("outstanding: got %v want 10000", loan.OutstandingAmount)
	}
	if loan.NextDueDate == nil || !loan.NextDueDate.Equal(rows[0].DueDate) {
		t.Errorf("next due date: got %v want %v", loan.NextDueDate, rows[0].DueDate)
	}

	var count int64
	if err := db.Model(&models.EmiSchedule{}).Where("loan_id = ?", loan.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 4 {
		t.Errorf("stored rows: got %d want 4", count)
	}
}

func TestGenerateRejectsExistingSchedule(t *testing.T) {
	db := newTestDB(t)
	svc := NewScheduleService(db, 2)

	loan, _ := createLoanWithSchedule(t, db, svc, 10000, 0, 4)

	// Повторная генерация для того же займа отклоняется
	if _, err := svc.Generate(db, loan); !errors.Is(err, ErrScheduleExists) {
		t.Errorf("got %v want ErrScheduleExists", err)
	}
}

func TestRegenerateFromReduceEmi(t *testing.T) {
	db := newTestDB(t)
	svc := NewScheduleService(db, 2)

	loan, rows := createLoanWithSchedule(t, db, svc, 120000, 10, 12)
	settleInstallments(t, db, loan, rows, 3)

	before := loan.OutstandingAmount
	oldEmi := loan.EmiAmount
	prepay := decimal.NewFromInt(20000)

	newRows, err := svc.RegenerateFrom(db, loan, 4, prepay, PrepaymentModeReduceEmi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Остаток основного долга уменьшается ровно на сумму досрочного погашения
	want := before.Sub(prepay)
	if !loan.OutstandingAmount.Equal(want) {
		t.Errorf("outstanding: got %v want %v", loan.OutstandingAmount, want)
	}
	principalSum := decimal.Zero
	for _, row := range newRows {
		principalSum = principalSum.Add(row.PrincipalAmount)
	}
	if !principalSum.Equal(want) {
		t.Errorf("tail principal sum: got %v want %v", principalSum, want)
	}

	// Срок сохраняется, EMI уменьшается
	if loan.TenureMonths != 12 {
		t.Errorf("tenure: got %d want 12", loan.TenureMonths)
	}
	if len(newRows) != 9 {
		t.Errorf("tail length: got %d want 9", len(newRows))
	}
	if !loan.EmiAmount.LessThan(oldEmi) {
		t.Errorf("emi must decrease: got %v was %v", loan.EmiAmount, oldEmi)
	}

	// Оплаченная голова графика неизменна
	var head []models.EmiSchedule
	if err := db.Where("loan_id = ? AND installment_number < ?", loan.ID, 4).
		Order("installment_number ASC").Find(&head).Error; err != nil {
		t.Fatalf("failed to load head: %v", err)
	}
	if len(head) != 3 {
		t.Fatalf("head length: got %d want 3", len(head))
	}
	for _, row := range head {
		if !row.IsPaid {
			t.Errorf("installment %d lost its paid mark", row.InstallmentNumber)
		}
	}
}

func TestRegenerateFromReduceTenure(t *testing.T) {
	db := newTestDB(t)
	svc := NewScheduleService(db, 2)

	loan, rows := createLoanWithSchedule(t, db, svc, 120000, 10, 12)
	settleInstallments(t, db, loan, rows, 3)

	before := loan.OutstandingAmount
	oldEmi := loan.EmiAmount
	prepay := decimal.NewFromInt(20000)

	newRows, err := svc.RegenerateFrom(db, loan, 4, prepay, PrepaymentModeReduceTenure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// EMI сохраняется, срок сокращается
	if !loan.EmiAmount.Equal(oldEmi) {
		t.Errorf("emi must stay fixed: got %v want %v", loan.EmiAmount, oldEmi)
	}
	if len(newRows) >= 9 {
		t.Errorf("tail length must shrink: got %d", len(newRows))
	}
	if loan.TenureMonths != 3+len(newRows) {
		t.Errorf("tenure: got %d want %d", loan.TenureMonths, 3+len(newRows))
	}

	// Остаток основного долга уменьшается ровно на сумму досрочного погашения
	want := before.Sub(prepay)
	if !loan.OutstandingAmount.Equal(want) {
		t.Errorf("outstanding: got %v want %v", loan.OutstandingAmount, want)
	}
	principalSum := decimal.Zero
	for _, row := range newRows {
		principalSum = principalSum.Add(row.PrincipalAmount)
	}
	if !principalSum.Equal(want) {
		t.Errorf("tail principal sum: got %v want %v", principalSum, want)
	}
	if !newRows[len(newRows)-1].OutstandingBalance.IsZero() {
		t.Errorf("final balance: got %v want 0", newRows[len(newRows)-1].OutstandingBalance)
	}
}

func TestRegenerateFromRejectsPaidInstallment(t *testing.T) {
	db := newTestDB(t)
	svc := NewScheduleService(db, 2)

	loan, rows := createLoanWithSchedule(t, db, svc, 120000, 10, 12)
	settleInstallments(t, db, loan, rows, 3)

	// Хвост с третьего взноса включает оплаченный взнос
	_, err := svc.RegenerateFrom(db, loan, 3, decimal.NewFromInt(1000), PrepaymentModeReduceEmi)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("got %v want ErrInvalidInput", err)
	}
}

func TestRegenerateFromKeepsPartialCredit(t *testing.T) {
	db := newTestDB(t)
	svc := NewScheduleService(db, 2)

	loan, rows := createLoanWithSchedule(t, db, svc, 10000, 0, 4)

	// Частичный платеж накоплен на первом взносе без отметки об оплате
	rows[0].ActualPaymentAmount = decimal.NewFromInt(500)
	if err := db.Save(&rows[0]).Error; err != nil {
		t.Fatalf("failed to save partial payment: %v", err)
	}

	// Пересборка хвоста поверх частично оплаченного взноса отклоняется
	_, err := svc.RegenerateFrom(db, loan, 1, decimal.NewFromInt(1000), PrepaymentModeReduceEmi)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v want ErrInvalidInput", err)
	}

	// Внесенная сумма не потеряна, график не тронут
	var stored models.EmiSchedule
	if err := db.Where("loan_id = ? AND installment_number = ?", loan.ID, 1).
		First(&stored).Error; err != nil {
		t.Fatalf("failed to load installment: %v", err)
	}
	if !stored.ActualPaymentAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("partial credit: got %v want 500", stored.ActualPaymentAmount)
	}

	var count int64
	if err := db.Model(&models.EmiSchedule{}).Where("loan_id = ?", loan.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 4 {
		t.Errorf("stored rows: got %d want 4", count)
	}
}

func TestRegenerateFromOverpaymentRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewScheduleService(db, 2)

	loan, _ := createLoanWithSchedule(t, db, svc, 10000, 0, 4)

	// Досрочное погашение всего остатка и больше не оставляет долга для графика
	_, err := svc.RegenerateFrom(db, loan, 1, decimal.NewFromInt(10000), PrepaymentModeReduceEmi)
	if !errors.Is(err, ErrOverpaymentExceedsOutstanding) {
		t.Errorf("got %v want ErrOverpaymentExceedsOutstanding", err)
	}
}
