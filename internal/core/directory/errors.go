package directory

import "errors"

var (
	// ErrUserNotFound はディレクトリ上にユーザーが存在しない場合に返却されます。
	ErrUserNotFound = errors.New("directory: user not found")
	// ErrOrgUnitNotFound はディレクトリ上に組織単位が存在しない場合に返却されます。
	ErrOrgUnitNotFound = errors.New("directory: org unit not found")
	// ErrProviderNotSupported は未対応のプロバイダ種別の場合に返却されます。
	ErrProviderNotSupported = errors.New("directory: provider not supported")
	// ErrInvalidCredentials は資格情報を解釈できない場合に返却されます。
	ErrInvalidCredentials = errors.New("directory: invalid credentials")
)
