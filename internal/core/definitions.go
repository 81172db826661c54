package core

import (
	"strings"

	"github.com/google/uuid"
)

var statusValues = []string{StatusActive, StatusInactive}

var leadStatusValues = []string{LeadNew, LeadContacted, LeadQualified, LeadUnqualified}

func init() {
	Register(EntityDefinition{
		Info: EntityInfo{Kind: KindAccount, Label: "Accounts"},
		FieldSpecs: []FieldSpec{
			{Name: FieldName, Aliases: []string{"account_name", "account"}, Type: FieldText, Required: true},
			{Name: FieldEmail, Aliases: []string{"email_address"}, Type: FieldEmailAddr},
			{Name: FieldPhone, Aliases: []string{"phone_number"}, Type: FieldText},
			{Name: FieldWebsite, Aliases: []string{"url", "web"}, Type: FieldText},
			{Name: FieldIndustry, Type: FieldText},
			{Name: FieldRevenue, Aliases: []string{"annual_revenue"}, Type: FieldNumeric, Min: 0, Max: 1e15},
			{Name: FieldEmployees, Aliases: []string{"employee_count", "headcount"}, Type: FieldInteger, Min: 0, Max: 1e7},
			{Name: FieldStatus, Type: FieldEnum, EnumValues: statusValues},
			{Name: FieldDescription, Aliases: []string{"notes"}, Type: FieldText},
		},
		Build: buildAccount,
	})

	Register(EntityDefinition{
		Info: EntityInfo{Kind: KindContact, Label: "Contacts"},
		FieldSpecs: []FieldSpec{
			{Name: FieldFirstName, Aliases: []string{"firstname", "given_name"}, Type: FieldText, Required: true},
			{Name: FieldLastName, Aliases: []string{"lastname", "surname", "family_name"}, Type: FieldText, Required: true},
			{Name: FieldEmail, Aliases: []string{"email_address"}, Type: FieldEmailAddr},
			{Name: FieldPhone, Aliases: []string{"phone_number", "work_phone"}, Type: FieldText},
			{Name: FieldMobile, Aliases: []string{"mobile_phone", "cell"}, Type: FieldText},
			{Name: FieldTitle, Aliases: []string{"job_title"}, Type: FieldText},
			{Name: FieldDepartment, Type: FieldText},
			{Name: FieldAccountID, Type: FieldUUID},
			{Name: FieldSource, Aliases: []string{"lead_source"}, Type: FieldText},
			{Name: FieldStatus, Type: FieldEnum, EnumValues: statusValues},
			{Name: FieldDescription, Aliases: []string{"notes"}, Type: FieldText},
		},
		Build: buildContact,
	})

	Register(EntityDefinition{
		Info: EntityInfo{Kind: KindLead, Label: "Leads"},
		FieldSpecs: []FieldSpec{
			{Name: FieldFirstName, Aliases: []string{"firstname", "given_name"}, Type: FieldText, Required: true},
			{Name: FieldLastName, Aliases: []string{"lastname", "surname", "family_name"}, Type: FieldText, Required: true},
			{Name: FieldEmail, Aliases: []string{"email_address"}, Type: FieldEmailAddr},
			{Name: FieldPhone, Aliases: []string{"phone_number"}, Type: FieldText},
			{Name: FieldCompany, Aliases: []string{"company_name", "organization"}, Type: FieldText},
			{Name: FieldTitle, Aliases: []string{"job_title"}, Type: FieldText},
			{Name: FieldLeadSource, Aliases: []string{"source"}, Type: FieldText},
			{Name: FieldLeadStatus, Aliases: []string{"status"}, Type: FieldEnum, EnumValues: leadStatusValues},
			{Name: FieldLeadScore, Aliases: []string{"score"}, Type: FieldInteger, Min: 0, Max: 100},
			{Name: FieldDescription, Aliases: []string{"notes"}, Type: FieldText},
		},
		Build: buildLead,
	})
}

func buildAccount(v Values) (Entity, error) {
	a := &Account{
		Name:        v.Get(FieldName),
		Email:       v.Get(FieldEmail),
		Phone:       v.Get(FieldPhone),
		Website:     v.Get(FieldWebsite),
		Industry:    v.Get(FieldIndustry),
		Status:      enumOrDefault(v.Get(FieldStatus), StatusActive),
		Description: v.Get(FieldDescription),
	}
	if raw := v.Get(FieldRevenue); raw != "" {
		f, _ := ParseNumeric(raw)
		a.Revenue = f
	}
	if raw := v.Get(FieldEmployees); raw != "" {
		n, _ := ParseInteger(raw)
		a.Employees = n
	}
	return a, nil
}

func buildContact(v Values) (Entity, error) {
	c := &Contact{
		FirstName:   v.Get(FieldFirstName),
		LastName:    v.Get(FieldLastName),
		Email:       v.Get(FieldEmail),
		Phone:       v.Get(FieldPhone),
		Mobile:      v.Get(FieldMobile),
		Title:       v.Get(FieldTitle),
		Department:  v.Get(FieldDepartment),
		Source:      v.Get(FieldSource),
		Status:      enumOrDefault(v.Get(FieldStatus), StatusActive),
		Description: v.Get(FieldDescription),
	}
	if raw := v.Get(FieldAccountID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, ValidationError{Field: string(FieldAccountID), Value: raw, Message: "invalid uuid"}
		}
		c.AccountID = &id
	}
	return c, nil
}

func buildLead(v Values) (Entity, error) {
	l := &Lead{
		FirstName:   v.Get(FieldFirstName),
		LastName:    v.Get(FieldLastName),
		Email:       v.Get(FieldEmail),
		Phone:       v.Get(FieldPhone),
		Company:     v.Get(FieldCompany),
		Title:       v.Get(FieldTitle),
		LeadSource:  v.Get(FieldLeadSource),
		LeadStatus:  enumOrDefault(v.Get(FieldLeadStatus), LeadNew),
		Description: v.Get(FieldDescription),
	}
	if raw := v.Get(FieldLeadScore); raw != "" {
		n, _ := ParseInteger(raw)
		l.LeadScore = n
	}
	return l, nil
}

// Get returns the value stored for f.
func (v Values) Get(f Field) string {
	return v[string(f)]
}

func enumOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return strings.ToLower(s)
}
