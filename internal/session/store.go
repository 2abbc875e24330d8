// Package session はポータルのログインセッション（Cookie）の永続化と
// 有効性検証を提供する。
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Store はアカウントごとのセッションCookieを保存・復元するインターフェースを定義する。
type Store interface {
	// Save はアカウントのCookieを暗号化して保存する。
	Save(accountID string, cookies []*http.Cookie) error

	// Load はアカウントの保存済みCookieを復号して返す。
	// ファイルが存在しない場合、または保存から有効期限を超過している場合はnilを返す。
	Load(accountID string) ([]*http.Cookie, error)

	// Drop はアカウントの保存済みCookieを破棄する。
	// ファイルが存在しない場合もエラーにしない。
	Drop(accountID string) error
}

// storedCookie は永続化するCookieの属性サブセット。
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires,omitempty"`
}

// sessionFile はCookieファイルの平文フォーマット。
// 暗号化前のJSON構造であり、SavedAtでファイル自体の有効期限を判定する。
type sessionFile struct {
	SavedAt time.Time      `json:"saved_at"`
	Cookies []storedCookie `json:"cookies"`
}

// encryptedFileStore はAES-GCMで暗号化したファイルにCookieを保存するStoreの実装。
// 1アカウントにつき1ファイルで、ファイル名はアカウントIDから決まる。
type encryptedFileStore struct {
	dataDir string
	key     []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewEncryptedFileStore はencryptedFileStoreを生成する。
// keyFileから32バイトの鍵を読み込む。鍵ファイルが存在しない場合は
// 新しい鍵を生成して0600で書き出す。
func NewEncryptedFileStore(dataDir, keyFile string, ttl time.Duration) (*encryptedFileStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("データディレクトリの作成に失敗しました: %w", err)
	}

	key, err := loadOrCreateKey(keyFile)
	if err != nil {
		return nil, err
	}

	return &encryptedFileStore{
		dataDir: dataDir,
		key:     key,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// loadOrCreateKey は鍵ファイルを読み込む。存在しない場合は生成する。
func loadOrCreateKey(keyFile string) ([]byte, error) {
	key, err := os.ReadFile(keyFile)
	if err == nil {
		if len(key) != 32 {
			return nil, fmt.Errorf("鍵ファイルの長さが不正です: %d バイト (32バイトが必要)", len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("鍵ファイルの読み込みに失敗しました: %w", err)
	}

	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("鍵の生成に失敗しました: %w", err)
	}
	if err := os.WriteFile(keyFile, key, 0o600); err != nil {
		return nil, fmt.Errorf("鍵ファイルの書き込みに失敗しました: %w", err)
	}
	return key, nil
}

// cookiePath はアカウントのCookieファイルパスを返す。
func (s *encryptedFileStore) cookiePath(accountID string) string {
	return filepath.Join(s.dataDir, accountID+".cookies")
}

// Save はアカウントのCookieを暗号化して保存する。
func (s *encryptedFileStore) Save(accountID string, cookies []*http.Cookie) error {
	file := sessionFile{SavedAt: s.now()}
	for _, c := range cookies {
		file.Cookies = append(file.Cookies, storedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}

	plaintext, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("Cookieのシリアライズに失敗しました: %w", err)
	}

	encrypted, err := encrypt(s.key, plaintext)
	if err != nil {
		return fmt.Errorf("Cookieの暗号化に失敗しました: %w", err)
	}

	if err := os.WriteFile(s.cookiePath(accountID), []byte(encrypted), 0o600); err != nil {
		return fmt.Errorf("Cookieファイルの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Load はアカウントの保存済みCookieを復号して返す。
// ファイルが存在しない場合、保存からTTLを超過している場合、
// 復号に失敗した場合（鍵の変更等）はnilを返す。
func (s *encryptedFileStore) Load(accountID string) ([]*http.Cookie, error) {
	encrypted, err := os.ReadFile(s.cookiePath(accountID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Cookieファイルの読み込みに失敗しました: %w", err)
	}

	plaintext, err := decrypt(s.key, string(encrypted))
	if err != nil {
		// 鍵の変更や破損で復号できないファイルは期限切れと同様に扱う
		return nil, nil
	}

	var file sessionFile
	if err := json.Unmarshal(plaintext, &file); err != nil {
		return nil, nil
	}

	if s.ttl > 0 && s.now().Sub(file.SavedAt) > s.ttl {
		return nil, nil
	}

	var cookies []*http.Cookie
	for _, c := range file.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}
	return cookies, nil
}

// Drop はアカウントの保存済みCookieを破棄する。
func (s *encryptedFileStore) Drop(accountID string) error {
	err := os.Remove(s.cookiePath(accountID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("Cookieファイルの削除に失敗しました: %w", err)
	}
	return nil
}

// encrypt は平文をAES-GCMで暗号化し、base64(nonce || ciphertext)を返す。
func encrypt(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt はbase64(nonce || ciphertext)をAES-GCMで復号する。
func decrypt(key []byte, encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
