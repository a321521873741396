package auth

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/keycloak-auth/internal/testutil"
	"github.com/StricklySoft/keycloak-auth/internal/testutil/fixtures"
	sserr "github.com/StricklySoft/keycloak-auth/pkg/errors"
)

func rawOf(t *testing.T, v any) RawClaims {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// ---------------------------------------------------------------------------
// Audience
// ---------------------------------------------------------------------------

func TestAudience_UnmarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Audience
		wantErr bool
	}{
		{`"account"`, Audience{"account"}, false},
		{`["account","my-client"]`, Audience{"account", "my-client"}, false},
		{`[]`, Audience{}, false},
		{`null`, nil, false},
		{`42`, nil, true},
		{`{"a":1}`, nil, true},
		{`[1,2]`, nil, true},
	}
	for _, tt := range tests {
		var got Audience
		err := json.Unmarshal([]byte(tt.in), &got)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAudience_MarshalJSON(t *testing.T) {
	t.Parallel()
	single, err := json.Marshal(Audience{"account"})
	require.NoError(t, err)
	assert.Equal(t, `"account"`, string(single))

	multi, err := json.Marshal(Audience{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(multi))

	assert.True(t, Audience{"a", "b"}.Contains("b"))
	assert.False(t, Audience{"a"}.Contains("b"))
}

// ---------------------------------------------------------------------------
// StandardClaims
// ---------------------------------------------------------------------------

func TestDecodeStandardClaims_Full(t *testing.T) {
	t.Parallel()
	sc, err := DecodeStandardClaims(rawOf(t, validClaims()))
	require.NoError(t, err)

	assert.Equal(t, fixtures.Subject, sc.Subject)
	assert.Equal(t, testNow.Unix(), sc.IssuedAtTime().Unix())
	assert.Equal(t, testNow.Unix()+600, sc.Expiry().Unix())
	assert.Equal(t, fixtures.Issuer, sc.Issuer)
	assert.Equal(t, Audience{fixtures.OtherClient}, sc.Audience)
	assert.Equal(t, fixtures.Client, sc.AuthorizedParty)
	assert.NotEmpty(t, sc.ID)
	require.NotNil(t, sc.RealmAccess)
	assert.Equal(t, fixtures.RealmRoles, sc.RealmAccess.Roles)
	assert.Equal(t, []string{"read", "write"}, sc.ResourceAccess[fixtures.Client].Roles)
}

func TestDecodeStandardClaims_Minimal(t *testing.T) {
	t.Parallel()
	sc, err := DecodeStandardClaims(rawOf(t, fixtures.MinimalClaims(testNow)))
	require.NoError(t, err)

	assert.Equal(t, fixtures.Subject, sc.Subject)
	assert.Empty(t, sc.Issuer)
	assert.Nil(t, sc.Audience)
	assert.Nil(t, sc.RealmAccess)
	assert.Empty(t, sc.ResourceAccess)
	assert.Empty(t, sc.Roles())
}

func TestDecodeStandardClaims_AudienceAsList(t *testing.T) {
	t.Parallel()
	claims := validClaims()
	claims["aud"] = []string{"client1", "client2"}

	sc, err := DecodeStandardClaims(rawOf(t, claims))
	require.NoError(t, err)
	assert.Equal(t, Audience{"client1", "client2"}, sc.Audience)
}

func TestDecodeStandardClaims_MissingMandatory(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"sub", "exp", "iat"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			claims := validClaims()
			delete(claims, name)

			_, err := DecodeStandardClaims(rawOf(t, claims))
			testutil.RequireErrorCode(t, err, sserr.CodeAuthenticationClaims)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestDecodeStandardClaims_Malformed(t *testing.T) {
	t.Parallel()
	tests := map[string]func(map[string]any){
		"null sub":          func(c map[string]any) { c["sub"] = nil },
		"numeric sub":       func(c map[string]any) { c["sub"] = 12 },
		"string exp":        func(c map[string]any) { c["exp"] = "tomorrow" },
		"aud object":        func(c map[string]any) { c["aud"] = map[string]any{"x": 1} },
		"realm roles shape": func(c map[string]any) { c["realm_access"] = map[string]any{"roles": "admin"} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			claims := map[string]any(validClaims())
			mutate(claims)
			_, err := DecodeStandardClaims(rawOf(t, claims))
			testutil.AssertErrorCode(t, err, sserr.CodeAuthenticationClaims)
		})
	}

	_, err := DecodeStandardClaims(RawClaims(`["not","an","object"]`))
	testutil.AssertErrorCode(t, err, sserr.CodeAuthenticationClaims)
}

func TestStandardClaims_HasRole(t *testing.T) {
	t.Parallel()
	sc, err := DecodeStandardClaims(rawOf(t, validClaims()))
	require.NoError(t, err)

	assert.True(t, sc.HasRole(RealmRole("admin")))
	assert.True(t, sc.HasRole(ClientRole(fixtures.Client, "write")))
	assert.True(t, sc.HasRole(ClientRole(fixtures.OtherClient, "manage-account")))
	assert.False(t, sc.HasRole(RealmRole("write")), "client role must not satisfy realm role")
	assert.False(t, sc.HasRole(ClientRole(fixtures.Client, "admin")), "realm role must not satisfy client role")
	assert.False(t, sc.HasRole(ClientRole("unknown", "read")))
	assert.False(t, sc.HasRole(Role{Kind: "group", Name: "admin"}))
}

func TestStandardClaims_Roles_Order(t *testing.T) {
	t.Parallel()
	sc, err := DecodeStandardClaims(rawOf(t, validClaims()))
	require.NoError(t, err)

	assert.Equal(t, Roles{
		RealmRole("offline_access"),
		RealmRole("user"),
		RealmRole("admin"),
		ClientRole(fixtures.OtherClient, "manage-account"),
		ClientRole(fixtures.Client, "read"),
		ClientRole(fixtures.Client, "write"),
	}, sc.Roles())
}

func TestStandardClaims_MissingRoles(t *testing.T) {
	t.Parallel()
	sc, err := DecodeStandardClaims(rawOf(t, validClaims()))
	require.NoError(t, err)

	required := Roles{RealmRole("admin"), RealmRole("auditor"), ClientRole(fixtures.Client, "delete")}
	assert.Equal(t, Roles{RealmRole("auditor"), ClientRole(fixtures.Client, "delete")}, sc.MissingRoles(required))
	assert.Empty(t, sc.MissingRoles(nil))
}

// ---------------------------------------------------------------------------
// UnstructuredClaims
// ---------------------------------------------------------------------------

func TestDecodeUnstructuredClaims_KeepsEveryOtherField(t *testing.T) {
	t.Parallel()
	u, err := DecodeUnstructuredClaims(rawOf(t, validClaims()))
	require.NoError(t, err)

	assert.Equal(t, []string{"company_id", "email", "email_verified", "preferred_username", "scope"}, u.Names())
	for _, name := range standardClaimNames {
		assert.False(t, u.Has(name), "standard claim %q leaked into unstructured", name)
	}
}

func TestUnstructuredClaims_Get(t *testing.T) {
	t.Parallel()
	claims := validClaims()
	claims["other"] = []string{"some", "values"}
	u, err := DecodeUnstructuredClaims(rawOf(t, claims))
	require.NoError(t, err)

	other, err := Claim[[]string](u, "other")
	require.NoError(t, err)
	assert.Equal(t, []string{"some", "values"}, other)

	email, err := Claim[string](u, "email")
	require.NoError(t, err)
	assert.Equal(t, fixtures.Email, email)

	var company int
	require.NoError(t, u.Get("company_id", &company))
	assert.Equal(t, 42, company)
}

func TestUnstructuredClaims_Get_NotFound(t *testing.T) {
	t.Parallel()
	u, err := DecodeUnstructuredClaims(rawOf(t, validClaims()))
	require.NoError(t, err)

	_, err = Claim[string](u, "tenant")
	testutil.RequireErrorCode(t, err, sserr.CodeNotFoundClaim)
	assert.Contains(t, err.Error(), "tenant")
}

func TestUnstructuredClaims_Get_ShapeMismatch(t *testing.T) {
	t.Parallel()
	claims := validClaims()
	claims["other"] = []string{"some", "values"}
	u, err := DecodeUnstructuredClaims(rawOf(t, claims))
	require.NoError(t, err)

	_, err = Claim[[]int](u, "other")
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), "other")
	assert.Contains(t, err.Error(), "invalid type")

	e, _ := sserr.AsError(err)
	assert.Equal(t, 400, e.HTTPStatus())
	assert.Equal(t, "other", e.Details["claim"])
}

func TestUnstructuredClaims_Get_NoPartialConversion(t *testing.T) {
	t.Parallel()
	u := UnstructuredClaims{"profile": json.RawMessage(`{"name":"alice","age":"old"}`)}

	type profile struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	out := profile{Name: "unchanged"}
	err := u.Get("profile", &out)
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Equal(t, profile{Name: "unchanged"}, out)
	assert.Contains(t, err.Error(), "profile.age")
}

func TestUnstructuredClaims_Get_RequiresPointer(t *testing.T) {
	t.Parallel()
	u := UnstructuredClaims{"x": json.RawMessage(`1`)}
	var n int
	testutil.AssertErrorCode(t, u.Get("x", n), sserr.CodeInternal)
	testutil.AssertErrorCode(t, u.Get("x", nil), sserr.CodeInternal)
}

// ---------------------------------------------------------------------------
// Claims bundle and custom claims
// ---------------------------------------------------------------------------

func TestDecodeClaims(t *testing.T) {
	t.Parallel()
	c, err := DecodeClaims(rawOf(t, validClaims()))
	require.NoError(t, err)

	assert.Equal(t, fixtures.Subject, c.Subject())
	assert.Equal(t, c.Standard.Roles(), c.Roles)
	assert.True(t, c.Unstructured.Has("preferred_username"))
	assert.JSONEq(t, string(rawOf(t, validClaims())), string(c.Raw))
}

func TestDecodeClaims_MissingSubject(t *testing.T) {
	t.Parallel()
	claims := validClaims()
	delete(claims, "sub")
	_, err := DecodeClaims(rawOf(t, claims))
	testutil.RequireErrorCode(t, err, sserr.CodeAuthenticationClaims)
}

type companyClaims struct {
	Sub       uuid.UUID `json:"sub"`
	CompanyID int       `json:"company_id"`
	Username  string    `json:"preferred_username"`
}

func TestClaims_Decode_Custom(t *testing.T) {
	t.Parallel()
	sub := uuid.New()
	claims := validClaims()
	claims["sub"] = sub.String()

	c, err := DecodeClaims(rawOf(t, claims))
	require.NoError(t, err)

	var custom companyClaims
	require.NoError(t, c.Decode(&custom))
	assert.Equal(t, sub, custom.Sub)
	assert.Equal(t, 42, custom.CompanyID)
	assert.Equal(t, fixtures.Username, custom.Username)
}

func TestClaims_Decode_ShapeMismatch(t *testing.T) {
	t.Parallel()
	claims := validClaims()
	claims["company_id"] = "forty-two"

	c, err := DecodeClaims(rawOf(t, claims))
	require.NoError(t, err)

	var custom companyClaims
	err = c.Decode(&custom)
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), "invalid type")
	assert.Contains(t, err.Error(), "company_id")
}

// ---------------------------------------------------------------------------
// Strict shapes: null and missing fields
// ---------------------------------------------------------------------------

func TestUnstructuredClaims_Get_NullIsAMismatch(t *testing.T) {
	t.Parallel()
	u := UnstructuredClaims{"tenant": json.RawMessage(`null`)}

	_, err := Claim[string](u, "tenant")
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), `field "tenant": invalid type: null, expected string`)
	e, _ := sserr.AsError(err)
	assert.Equal(t, "tenant", e.Details["claim"])
	assert.Equal(t, 400, e.HTTPStatus())

	_, err = Claim[int](u, "tenant")
	testutil.AssertErrorCode(t, err, sserr.CodeValidationClaimShape)

	_, err = Claim[bool](u, "tenant")
	testutil.AssertErrorCode(t, err, sserr.CodeValidationClaimShape)
}

func TestUnstructuredClaims_Get_NullableTargets(t *testing.T) {
	t.Parallel()
	u := UnstructuredClaims{"tenant": json.RawMessage(` null `)}

	ptr, err := Claim[*string](u, "tenant")
	require.NoError(t, err)
	assert.Nil(t, ptr)

	list, err := Claim[[]string](u, "tenant")
	require.NoError(t, err)
	assert.Nil(t, list)

	m, err := Claim[map[string]any](u, "tenant")
	require.NoError(t, err)
	assert.Nil(t, m)

	v, err := Claim[any](u, "tenant")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestUnstructuredClaims_Get_NestedNulls(t *testing.T) {
	t.Parallel()
	u := UnstructuredClaims{
		"groups":  json.RawMessage(`["admins", null]`),
		"limits":  json.RawMessage(`{"api": 10, "ui": null}`),
		"profile": json.RawMessage(`{"name": null, "age": 30}`),
	}

	_, err := Claim[[]string](u, "groups")
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), `groups[1]`)

	_, err = Claim[map[string]int](u, "limits")
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), `limits.ui`)

	type profile struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	out := profile{Name: "unchanged"}
	err = u.Get("profile", &out)
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), `profile.name`)
	assert.Equal(t, profile{Name: "unchanged"}, out)
}

func TestUnstructuredClaims_Get_StructMissingField(t *testing.T) {
	t.Parallel()
	u := UnstructuredClaims{"address": json.RawMessage(`{"city": "Berlin"}`)}

	type address struct {
		City    string `json:"city"`
		Country string `json:"country"`
	}
	_, err := Claim[address](u, "address")
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), `missing field "address.country"`)

	type lenientAddress struct {
		City    string  `json:"city"`
		Country *string `json:"country"`
		Zip     string  `json:"zip,omitempty"`
	}
	got, err := Claim[lenientAddress](u, "address")
	require.NoError(t, err)
	assert.Equal(t, "Berlin", got.City)
	assert.Nil(t, got.Country)
}

type myClaims struct {
	Subject     string `json:"sub"`
	CustomField string `json:"custom_field"`
}

func TestClaims_Decode_MissingRequiredField(t *testing.T) {
	t.Parallel()
	c, err := DecodeClaims(rawOf(t, validClaims()))
	require.NoError(t, err)

	custom := myClaims{CustomField: "unchanged"}
	err = c.Decode(&custom)
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), `missing field "custom_field"`)
	assert.Equal(t, myClaims{CustomField: "unchanged"}, custom, "no partial conversion")

	e, _ := sserr.AsError(err)
	assert.Equal(t, "custom_field", e.Details["field"])
}

func TestClaims_Decode_RequiredFieldPresent(t *testing.T) {
	t.Parallel()
	claims := validClaims()
	claims["custom_field"] = "value"
	c, err := DecodeClaims(rawOf(t, claims))
	require.NoError(t, err)

	var custom myClaims
	require.NoError(t, c.Decode(&custom))
	assert.Equal(t, myClaims{Subject: fixtures.Subject, CustomField: "value"}, custom)
}

func TestClaims_Decode_NullRequiredField(t *testing.T) {
	t.Parallel()
	claims := validClaims()
	claims["custom_field"] = nil
	c, err := DecodeClaims(rawOf(t, claims))
	require.NoError(t, err)

	var custom myClaims
	err = c.Decode(&custom)
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), `field "custom_field": invalid type: null`)
}

type baseClaims struct {
	Subject string `json:"sub"`
}

type embeddedClaims struct {
	baseClaims
	Email    string   `json:"email"`
	Nickname string   `json:"nickname,omitempty"`
	Groups   []string `json:"groups,omitzero"`
	Ignored  string   `json:"-"`
	internal string
}

func TestClaims_Decode_EmbeddedAndOptionalFields(t *testing.T) {
	t.Parallel()
	c, err := DecodeClaims(rawOf(t, validClaims()))
	require.NoError(t, err)

	var custom embeddedClaims
	require.NoError(t, c.Decode(&custom))
	assert.Equal(t, fixtures.Subject, custom.Subject)
	assert.Equal(t, fixtures.Email, custom.Email)
	assert.Empty(t, custom.Nickname)
	assert.Empty(t, custom.internal)

	minimal, err := DecodeClaims(rawOf(t, fixtures.MinimalClaims(testNow)))
	require.NoError(t, err)
	err = minimal.Decode(&custom)
	testutil.RequireErrorCode(t, err, sserr.CodeValidationClaimShape)
	assert.Contains(t, err.Error(), `missing field "email"`)
}

func TestRawClaims_Decode_RequiresPointer(t *testing.T) {
	t.Parallel()
	raw := rawOf(t, validClaims())
	testutil.AssertErrorCode(t, raw.Decode(myClaims{}), sserr.CodeInternal)
	testutil.AssertErrorCode(t, raw.Decode(nil), sserr.CodeInternal)
}
