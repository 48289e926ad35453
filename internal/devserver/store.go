package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-zones/internal/models"
)

var (
	errNotFound       = errors.New("not found")
	errConflict       = errors.New("already exists")
	errBadCredentials = errors.New("invalid credentials")
)

type account struct {
	user     models.User
	password string
}

// store is the dev server's in-memory state: accounts, bearer tokens, and
// per-user zones. All access is mutex-guarded; handlers run concurrently.
type store struct {
	mu      sync.Mutex
	nextUID int64
	nextZID int64
	users   map[int64]*account
	tokens  map[string]int64
	zones   map[int64]*models.Zone
}

func newStore() *store {
	return &store{
		users:  make(map[int64]*account),
		tokens: make(map[string]int64),
		zones:  make(map[int64]*models.Zone),
	}
}

func (s *store) register(username, email, password string) (models.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.users {
		if a.user.Username == username || a.user.Email == email {
			return models.User{}, "", errConflict
		}
	}
	s.nextUID++
	u := models.User{
		ID:        s.nextUID,
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	s.users[u.ID] = &account{user: u, password: password}
	token := uuid.New().String()
	s.tokens[token] = u.ID
	return u, token, nil
}

func (s *store) login(login, password string) (models.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.users {
		if (a.user.Username == login || a.user.Email == login) && a.password == password {
			token := uuid.New().String()
			s.tokens[token] = a.user.ID
			return a.user, token, nil
		}
	}
	return models.User{}, "", errBadCredentials
}

func (s *store) revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// authenticate resolves a bearer token to its user.
func (s *store) authenticate(token string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.tokens[token]
	if !ok {
		return models.User{}, false
	}
	a, ok := s.users[uid]
	if !ok {
		return models.User{}, false
	}
	return a.user, true
}

func (s *store) listZones(userID int64, limit, offset int) models.ZoneList {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make([]models.Zone, 0)
	for _, z := range s.zones {
		if z.UserID == userID {
			owned = append(owned, *z)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID < owned[j].ID })

	total := len(owned)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return models.ZoneList{Items: owned[offset:end], Total: total}
}

func (s *store) createZone(userID int64, req models.CreateZoneRequest) models.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextZID++
	now := time.Now().UTC()
	z := models.Zone{
		ID:          s.nextZID,
		UserID:      userID,
		Name:        req.Name,
		CityName:    req.CityName,
		CountryCode: req.CountryCode,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.zones[z.ID] = &z
	return z
}

func (s *store) getZone(userID, zoneID int64) (models.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zones[zoneID]
	if !ok || z.UserID != userID {
		return models.Zone{}, errNotFound
	}
	return *z, nil
}

func (s *store) updateZone(userID, zoneID int64, req models.UpdateZoneRequest) (models.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zones[zoneID]
	if !ok || z.UserID != userID {
		return models.Zone{}, errNotFound
	}
	if req.Name != nil {
		z.Name = *req.Name
	}
	z.UpdatedAt = time.Now().UTC()
	return *z, nil
}

func (s *store) deleteZone(userID, zoneID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zones[zoneID]
	if !ok || z.UserID != userID {
		return errNotFound
	}
	delete(s.zones, zoneID)
	return nil
}

// refreshZone synthesizes a weather reading for the zone. The values are
// derived from the zone id so repeated refreshes of the same zone stay
// plausible while still changing CachedAt.
func (s *store) refreshZone(userID, zoneID int64) (models.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zones[zoneID]
	if !ok || z.UserID != userID {
		return models.Zone{}, errNotFound
	}
	seed := zoneID*7 + int64(time.Now().Minute())
	z.Weather = &models.WeatherSnapshot{
		TemperatureC: float64(seed%45) - 10,
		Humidity:     int(30 + seed%60),
		Conditions:   conditions[seed%int64(len(conditions))],
		WindSpeedKmh: float64(seed % 38),
		CachedAt:     time.Now().UTC(),
	}
	z.UpdatedAt = time.Now().UTC()
	return *z, nil
}

var conditions = []string{"Clear", "Partly cloudy", "Overcast", "Light rain", "Thunderstorm", "Snow", "Fog"}

// searchCities matches the embedded city list by case-insensitive prefix
// first, then substring, capped at limit.
func searchCities(query string, limit int) []models.CitySearchItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) < 2 {
		return []models.CitySearchItem{}
	}

	prefix := make([]models.CitySearchItem, 0, limit)
	contains := make([]models.CitySearchItem, 0, limit)
	for _, c := range cities {
		name := strings.ToLower(c.Name)
		switch {
		case strings.HasPrefix(name, q):
			prefix = append(prefix, c)
		case strings.Contains(name, q):
			contains = append(contains, c)
		}
	}
	out := append(prefix, contains...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

var cities = []models.CitySearchItem{
	{ID: 1, Name: "London", Region: "England", Country: "GB", Lat: 51.5074, Lon: -0.1278},
	{ID: 2, Name: "Londonderry", Region: "Northern Ireland", Country: "GB", Lat: 54.9966, Lon: -7.3086},
	{ID: 3, Name: "Paris", Region: "Ile-de-France", Country: "FR", Lat: 48.8566, Lon: 2.3522},
	{ID: 4, Name: "Berlin", Region: "Berlin", Country: "DE", Lat: 52.52, Lon: 13.405},
	{ID: 5, Name: "Madrid", Region: "Madrid", Country: "ES", Lat: 40.4168, Lon: -3.7038},
	{ID: 6, Name: "Rome", Region: "Lazio", Country: "IT", Lat: 41.9028, Lon: 12.4964},
	{ID: 7, Name: "Amsterdam", Region: "North Holland", Country: "NL", Lat: 52.3676, Lon: 4.9041},
	{ID: 8, Name: "Vienna", Region: "Vienna", Country: "AT", Lat: 48.2082, Lon: 16.3738},
	{ID: 9, Name: "Prague", Region: "Prague", Country: "CZ", Lat: 50.0755, Lon: 14.4378},
	{ID: 10, Name: "Warsaw", Region: "Masovia", Country: "PL", Lat: 52.2297, Lon: 21.0122},
	{ID: 11, Name: "Lisbon", Region: "Lisbon", Country: "PT", Lat: 38.7223, Lon: -9.1393},
	{ID: 12, Name: "Dublin", Region: "Leinster", Country: "IE", Lat: 53.3498, Lon: -6.2603},
	{ID: 13, Name: "New York", Region: "New York", Country: "US", Lat: 40.7128, Lon: -74.006},
	{ID: 14, Name: "Los Angeles", Region: "California", Country: "US", Lat: 34.0522, Lon: -118.2437},
	{ID: 15, Name: "Chicago", Region: "Illinois", Country: "US", Lat: 41.8781, Lon: -87.6298},
	{ID: 16, Name: "Toronto", Region: "Ontario", Country: "CA", Lat: 43.6532, Lon: -79.3832},
	{ID: 17, Name: "Tokyo", Region: "Kanto", Country: "JP", Lat: 35.6762, Lon: 139.6503},
	{ID: 18, Name: "Osaka", Region: "Kansai", Country: "JP", Lat: 34.6937, Lon: 135.5023},
	{ID: 19, Name: "Sydney", Region: "New South Wales", Country: "AU", Lat: -33.8688, Lon: 151.2093},
	{ID: 20, Name: "Melbourne", Region: "Victoria", Country: "AU", Lat: -37.8136, Lon: 144.9631},
	{ID: 21, Name: "Sao Paulo", Region: "Sao Paulo", Country: "BR", Lat: -23.5505, Lon: -46.6333},
	{ID: 22, Name: "Cairo", Region: "Cairo", Country: "EG", Lat: 30.0444, Lon: 31.2357},
	{ID: 23, Name: "Cape Town", Region: "Western Cape", Country: "ZA", Lat: -33.9249, Lon: 18.4241},
	{ID: 24, Name: "Mumbai", Region: "Maharashtra", Country: "IN", Lat: 19.076, Lon: 72.8777},
	{ID: 25, Name: "Singapore", Region: "Singapore", Country: "SG", Lat: 1.3521, Lon: 103.8198},
}
